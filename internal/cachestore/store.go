// Package cachestore implements the on-disk cache layout: for each logical
// path, a sparse data file, a serialized RangeSet, a serialized stat
// record, and (for directories) a serialized listing, all stored under a
// single cache root directory that mirrors the logical path structure.
package cachestore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jtyers/pcachefs/internal/origin"
	"github.com/jtyers/pcachefs/internal/pcerr"
	"github.com/jtyers/pcachefs/internal/ranges"
)

const (
	dataFile   = "cache.data"
	rangesFile = "cache.data.range"
	statFile   = "cache.stat"
	listFile   = "cache.list"
)

// Store translates logical paths into concrete locations under a cache
// root and provides typed load/store operations for each artifact kind.
//
// Stat and directory-listing records are additionally memoized in an
// in-process cache, the same way the teacher's own cache backend keeps a
// patrickmn/go-cache in front of its on-disk chunk storage: both records
// are write-once per path in normal engine use, so a process-lifetime
// memo saves a gob-decode and a disk read on every repeated getattr or
// readdir for a path already seen this run.
type Store struct {
	root string
	memo *gocache.Cache
}

// New creates the cache root if absent and returns a Store over it.
// Existing contents are reused as-is.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create root %s: %w", root, err)
	}
	return &Store{root: root, memo: gocache.New(gocache.NoExpiration, 0)}, nil
}

// dirFor maps a logical path to its cache-root directory, failing with
// pcerr.BadPath when the path does not begin with a leading separator.
func (s *Store) dirFor(path string) (string, error) {
	if len(path) == 0 || path[0] != '/' {
		return "", fmt.Errorf("cachestore: path %q: %w", path, pcerr.BadPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(path[1:])), nil
}

// EnsureDir creates the cache directory for path if it does not exist.
func (s *Store) EnsureDir(path string) error {
	dir, err := s.dirFor(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cachestore: mkdir %s: %w", dir, err)
	}
	return nil
}

func (s *Store) artifactPath(path, name string) (string, error) {
	dir, err := s.dirFor(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ReadRanges returns the RangeSet stored for path, or an empty RangeSet if
// none has been persisted yet.
func (s *Store) ReadRanges(path string) (ranges.Ranges, error) {
	p, err := s.artifactPath(path, rangesFile)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return ranges.Ranges{}, nil
		}
		return nil, fmt.Errorf("cachestore: read ranges %s: %w", path, err)
	}
	var rs ranges.Ranges
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rs); err != nil {
		return nil, fmt.Errorf("cachestore: decode ranges %s: %w", path, err)
	}
	return rs, nil
}

// WriteRanges persists set as the RangeSet for path.
func (s *Store) WriteRanges(path string, set ranges.Ranges) error {
	p, err := s.artifactPath(path, rangesFile)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&set); err != nil {
		return fmt.Errorf("cachestore: encode ranges %s: %w", path, err)
	}
	return writeFileFsync(p, buf.Bytes())
}

// InitData creates a sparse data file of the given logical length for
// path, if one does not already exist. It is idempotent.
func (s *Store) InitData(path string, size int64) error {
	if err := s.EnsureDir(path); err != nil {
		return err
	}
	p, err := s.artifactPath(path, dataFile)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("cachestore: stat data %s: %w", path, err)
	}

	fh, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("cachestore: create data %s: %w", path, err)
	}
	defer fh.Close()

	if size > 0 {
		if _, err := fh.WriteAt([]byte{0}, size-1); err != nil {
			return fmt.Errorf("cachestore: extend data %s: %w", path, err)
		}
	}
	return nil
}

// ReadData returns size bytes at offset from path's sparse data file.
func (s *Store) ReadData(path string, offset, size int64) ([]byte, error) {
	p, err := s.artifactPath(path, dataFile)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("cachestore: open data %s: %w", path, err)
	}
	defer fh.Close()

	buf := make([]byte, size)
	n, err := fh.ReadAt(buf, offset)
	if err != nil && n != len(buf) {
		return nil, fmt.Errorf("cachestore: read data %s at %d: %w", path, offset, err)
	}
	return buf, nil
}

// SpliceData overwrites path's sparse data file with bytes at offset.
func (s *Store) SpliceData(path string, offset int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	p, err := s.artifactPath(path, dataFile)
	if err != nil {
		return err
	}
	fh, err := os.OpenFile(p, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("cachestore: open data %s: %w", path, err)
	}
	defer fh.Close()

	if _, err := fh.WriteAt(data, offset); err != nil {
		return fmt.Errorf("cachestore: splice data %s at %d: %w", path, offset, err)
	}
	return fh.Sync()
}

// LoadStat returns the persisted stat record for path, if any.
func (s *Store) LoadStat(path string) (origin.Info, bool, error) {
	if v, ok := s.memo.Get(statMemoKey(path)); ok {
		return v.(origin.Info), true, nil
	}

	p, err := s.artifactPath(path, statFile)
	if err != nil {
		return origin.Info{}, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return origin.Info{}, false, nil
		}
		return origin.Info{}, false, fmt.Errorf("cachestore: read stat %s: %w", path, err)
	}
	var info origin.Info
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return origin.Info{}, false, fmt.Errorf("cachestore: decode stat %s: %w", path, err)
	}
	s.memo.SetDefault(statMemoKey(path), info)
	return info, true, nil
}

// StoreStat persists info as the stat record for path. Stat records are
// write-once in normal operation; the engine is responsible for never
// calling this twice for the same path.
func (s *Store) StoreStat(path string, info origin.Info) error {
	if err := s.EnsureDir(path); err != nil {
		return err
	}
	p, err := s.artifactPath(path, statFile)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&info); err != nil {
		return fmt.Errorf("cachestore: encode stat %s: %w", path, err)
	}
	if err := writeFileFsync(p, buf.Bytes()); err != nil {
		return err
	}
	s.memo.SetDefault(statMemoKey(path), info)
	return nil
}

// LoadList returns the persisted directory listing for path, if any.
func (s *Store) LoadList(path string) ([]origin.Entry, bool, error) {
	if v, ok := s.memo.Get(listMemoKey(path)); ok {
		return v.([]origin.Entry), true, nil
	}

	p, err := s.artifactPath(path, listFile)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cachestore: read list %s: %w", path, err)
	}
	var entries []origin.Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return nil, false, fmt.Errorf("cachestore: decode list %s: %w", path, err)
	}
	s.memo.SetDefault(listMemoKey(path), entries)
	return entries, true, nil
}

// StoreList persists entries as the directory listing for path.
func (s *Store) StoreList(path string, entries []origin.Entry) error {
	if err := s.EnsureDir(path); err != nil {
		return err
	}
	p, err := s.artifactPath(path, listFile)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&entries); err != nil {
		return fmt.Errorf("cachestore: encode list %s: %w", path, err)
	}
	if err := writeFileFsync(p, buf.Bytes()); err != nil {
		return err
	}
	s.memo.SetDefault(listMemoKey(path), entries)
	return nil
}

func statMemoKey(path string) string { return "stat:" + path }
func listMemoKey(path string) string { return "list:" + path }

func writeFileFsync(path string, data []byte) error {
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cachestore: write %s: %w", path, err)
	}
	defer fh.Close()
	if _, err := fh.Write(data); err != nil {
		return fmt.Errorf("cachestore: write %s: %w", path, err)
	}
	return fh.Sync()
}
