// Package virtual implements the synthetic control namespace: a small set
// of in-memory objects, served under a configurable prefix at the mount
// root, that let a caller toggle engine-wide state without an out-of-band
// control channel.
package virtual

import (
	"fmt"
	"strings"
)

// CacheOnlyFile is the name of the control file whose contents toggle
// cache-only mode.
const CacheOnlyFile = "cache_only"

// Toggle is the engine-scoped switch the cache-only control file reads
// and writes. internal/engine.Engine satisfies this.
type Toggle interface {
	SetCacheOnly(bool)
	CacheOnly() bool
}

// FS is the synthetic namespace. It currently exposes a single control
// file, cache_only, but is structured to grow additional entries the same
// way.
type FS struct {
	toggle Toggle
}

// New returns a synthetic namespace backed by toggle.
func New(toggle Toggle) *FS {
	return &FS{toggle: toggle}
}

// Names lists the synthetic entries, in the fixed order they are listed
// inside the virtual-dir directory.
func (f *FS) Names() []string {
	return []string{CacheOnlyFile}
}

// Has reports whether name is a synthetic entry.
func (f *FS) Has(name string) bool {
	return name == CacheOnlyFile
}

// Read returns the current contents of the named synthetic file: "0\n"
// or "1\n" for cache_only.
func (f *FS) Read(name string) ([]byte, error) {
	switch name {
	case CacheOnlyFile:
		if f.toggle.CacheOnly() {
			return []byte("1\n"), nil
		}
		return []byte("0\n"), nil
	default:
		return nil, fmt.Errorf("virtual: no such entry %q", name)
	}
}

// Write applies data as a new value for the named synthetic file. After
// surrounding whitespace is trimmed, "0" sets the toggle off and "1" sets
// it on; any other content is rejected.
func (f *FS) Write(name string, data []byte) error {
	switch name {
	case CacheOnlyFile:
		v := strings.TrimSpace(string(data))
		switch v {
		case "0":
			f.toggle.SetCacheOnly(false)
		case "1":
			f.toggle.SetCacheOnly(true)
		default:
			return fmt.Errorf("virtual: cache_only: invalid value %q", v)
		}
		return nil
	default:
		return fmt.Errorf("virtual: no such entry %q", name)
	}
}

// Size returns the byte length of the named synthetic file's current
// contents, used to answer getattr without materializing a read.
func (f *FS) Size(name string) (int64, error) {
	data, err := f.Read(name)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
