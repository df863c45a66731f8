// Package fusefs is the FUSE dispatcher: it routes every incoming
// operation either to the synthetic control namespace or to the caching
// engine, following the same path string from root to leaf rather than
// maintaining a persistent inode table.
package fusefs

import (
	"context"
	"hash/fnv"
	"os"
	"path"
	"strings"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/jtyers/pcachefs/internal/engine"
	"github.com/jtyers/pcachefs/internal/fusefs/virtual"
	"github.com/jtyers/pcachefs/internal/pcerr"
	"github.com/jtyers/pcachefs/internal/pclog"
)

// FS is the top-level bazil.org/fuse filesystem. It implements fs.FS.
type FS struct {
	engine     *engine.Engine
	virtual    *virtual.FS
	virtualDir string
}

// New returns a dispatcher serving eng for mirrored paths and a synthetic
// namespace rooted at virtualDir (e.g. ".pcachefs") for control paths.
func New(eng *engine.Engine, virtualDir string) *FS {
	return &FS{
		engine:     eng,
		virtual:    virtual.New(eng),
		virtualDir: strings.Trim(virtualDir, "/"),
	}
}

func permissionDeniedOpen(p string) error {
	return &pathErr{p, pcerr.PermissionDenied}
}

func notImplementedWrite(p string) error {
	return &pathErr{p, pcerr.NotImplemented}
}

type pathErr struct {
	path string
	err  error
}

func (e *pathErr) Error() string { return e.path + ": " + e.err.Error() }
func (e *pathErr) Unwrap() error { return e.err }

// Root returns the filesystem root node.
func (f *FS) Root() (fs.Node, error) {
	return &node{fs: f, path: "/"}, nil
}

// node represents one path in the mirrored tree or the synthetic
// namespace. It is recomputed on every lookup rather than cached, since
// the engine and virtual namespace are themselves the source of truth.
type node struct {
	fs   *FS
	path string // logical path, always absolute, "/" for root

	// forceReload is set at Open time when the caller requested direct
	// I/O, and consulted by Read: the node doubles as its own handle, so
	// this is the only place to carry per-open state.
	forceReload bool
}

var (
	_ fs.Node               = (*node)(nil)
	_ fs.NodeStringLookuper = (*node)(nil)
	_ fs.HandleReadDirAller = (*node)(nil)
	_ fs.NodeOpener         = (*node)(nil)
	_ fs.HandleReader       = (*node)(nil)
	_ fs.HandleWriter       = (*node)(nil)
	_ fs.NodeSetattrer      = (*node)(nil)
	_ fs.HandleFlusher      = (*node)(nil)
	_ fs.HandleReleaser     = (*node)(nil)
)

// virtualName reports whether this node lives inside the synthetic
// namespace, returning the entry name relative to the virtual-dir prefix.
// "" with ok=true denotes the virtual-dir directory itself.
func (n *node) virtualName() (name string, ok bool) {
	prefix := "/" + n.fs.virtualDir
	if n.path == prefix {
		return "", true
	}
	if strings.HasPrefix(n.path, prefix+"/") {
		return strings.TrimPrefix(n.path, prefix+"/"), true
	}
	return "", false
}

func inodeFor(p string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(p))
	return h.Sum64()
}

// Attr implements fs.Node.
func (n *node) Attr(ctx context.Context, attr *fuse.Attr) error {
	attr.Inode = inodeFor(n.path)

	if vn, ok := n.virtualName(); ok {
		attr.Mode = 0o555
		if vn == "" {
			attr.Mode |= os.ModeDir
			return nil
		}
		size, err := n.fs.virtual.Size(vn)
		if err != nil {
			return toFuseErr(err)
		}
		attr.Size = uint64(size)
		attr.Mode = 0o644
		return nil
	}

	info, err := n.fs.engine.Getattr(ctx, n.path)
	if err != nil {
		return toFuseErr(err)
	}
	attr.Size = uint64(info.Size)
	attr.Mode = info.Mode
	attr.Nlink = uint32(info.Nlink)
	attr.Uid = info.Uid
	attr.Gid = info.Gid
	attr.Rdev = uint32(info.Rdev)
	attr.Mtime = info.Mtime
	attr.Atime = info.Atime
	attr.Ctime = info.Ctime
	attr.BlockSize = uint32(info.Blksize)
	return nil
}

// Lookup implements fs.NodeStringLookuper.
func (n *node) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := &node{fs: n.fs, path: path.Join(n.path, name)}

	if vn, ok := child.virtualName(); ok {
		if vn != "" && !n.fs.virtual.Has(vn) {
			return nil, fuse.ENOENT
		}
		return child, nil
	}

	if _, err := n.fs.engine.Getattr(ctx, child.path); err != nil {
		return nil, toFuseErr(err)
	}
	return child, nil
}

// ReadDirAll implements fs.HandleReadDirAller. At the mount root, the
// virtual-dir entry is listed first, then the mirrored root's own
// entries, per the dispatcher contract.
func (n *node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	var out []fuse.Dirent

	if vn, ok := n.virtualName(); ok {
		if vn != "" {
			return nil, fuse.Errno(syscall.ENOTDIR)
		}
		for _, name := range n.fs.virtual.Names() {
			out = append(out, fuse.Dirent{
				Inode: inodeFor(path.Join(n.path, name)),
				Type:  fuse.DT_File,
				Name:  name,
			})
		}
		return out, nil
	}

	if n.path == "/" {
		out = append(out, fuse.Dirent{
			Inode: inodeFor("/" + n.fs.virtualDir),
			Type:  fuse.DT_Dir,
			Name:  n.fs.virtualDir,
		})
	}

	entries, err := n.fs.engine.Readdir(ctx, n.path)
	if err != nil {
		return nil, toFuseErr(err)
	}
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{
			Inode: inodeFor(path.Join(n.path, e.Name)),
			Type:  typ,
			Name:  e.Name,
		})
	}
	return out, nil
}

// Open implements fs.NodeOpener. Mirrored paths accept only read-only
// flag combinations; the synthetic namespace sets its own policy
// (read-write, since it is the control surface).
func (n *node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if _, ok := n.virtualName(); ok {
		return n, nil
	}
	if !req.Flags.IsReadOnly() {
		return nil, toFuseErr(permissionDeniedOpen(n.path))
	}
	// O_DIRECT is the caller's signal to bypass whatever is cached and
	// re-fetch from the origin, the same way force_reload does at the
	// engine layer.
	if req.Flags&fuse.OpenFlags(syscall.O_DIRECT) != 0 {
		n.forceReload = true
	}
	return n, nil
}

// Read implements fs.HandleReader.
func (n *node) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	if vn, ok := n.virtualName(); ok {
		data, err := n.fs.virtual.Read(vn)
		if err != nil {
			return toFuseErr(err)
		}
		if req.Offset >= int64(len(data)) {
			resp.Data = nil
			return nil
		}
		end := req.Offset + int64(req.Size)
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		resp.Data = data[req.Offset:end]
		return nil
	}

	data, err := n.fs.engine.Read(ctx, n.path, req.Offset, int64(req.Size), n.forceReload)
	if err != nil {
		return toFuseErr(err)
	}
	resp.Data = data
	return nil
}

// Write implements fs.HandleWriter. Mirrored paths are read-only; the
// synthetic namespace accepts a write as a control command.
func (n *node) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	if vn, ok := n.virtualName(); ok && vn != "" {
		if err := n.fs.virtual.Write(vn, req.Data); err != nil {
			return toFuseErr(err)
		}
		resp.Size = len(req.Data)
		return nil
	}
	return toFuseErr(notImplementedWrite(n.path))
}

// Setattr implements fs.NodeSetattrer. A size change (truncate) against a
// mirrored path is the one Setattr variant the dispatcher contract
// specifies; anything else is accepted as a no-op.
func (n *node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if _, ok := n.virtualName(); ok {
		return nil
	}
	if req.Valid.Size() {
		return toFuseErr(notImplementedWrite(n.path))
	}
	return nil
}

// Flush implements fs.HandleFlusher: a no-op on mirrored paths per the
// dispatcher contract.
func (n *node) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	return nil
}

// Release implements fs.HandleReleaser: a no-op on mirrored paths per the
// dispatcher contract.
func (n *node) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return nil
}

// Mount mounts the dispatcher at mountpoint and serves it until the
// connection is closed or ctx is done, logging once the mount is
// established.
func Mount(ctx context.Context, mountpoint string, eng *engine.Engine, virtualDir string) error {
	c, err := fuse.Mount(mountpoint, fuse.FSName("pcachefs"), fuse.Subtype("pcachefs"))
	if err != nil {
		return err
	}
	defer c.Close()

	pclog.Infof(ctx, "mounted pcachefs at %s", mountpoint)

	filesys := New(eng, virtualDir)

	errCh := make(chan error, 1)
	go func() {
		errCh <- fs.Serve(c, filesys)
	}()

	select {
	case <-ctx.Done():
		_ = fuse.Unmount(mountpoint)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
