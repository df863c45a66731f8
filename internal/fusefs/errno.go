package fusefs

import (
	"errors"
	"syscall"

	"bazil.org/fuse"

	"github.com/jtyers/pcachefs/internal/pcerr"
)

// errnoError adapts a pcerr sentinel (or any error) to bazil.org/fuse's
// fuse.ErrorNumber interface, so fs.Serve reports the errno a FUSE caller
// actually expects instead of the default EIO.
type errnoError struct {
	err   error
	errno fuse.Errno
}

func (e errnoError) Error() string     { return e.err.Error() }
func (e errnoError) Errno() fuse.Errno { return e.errno }

// toFuseErr maps the pcerr sentinel taxonomy onto syscall errno classes at
// the FUSE boundary: CacheMiss as a no-such-data condition, NotImplemented
// as an unsupported operation, PermissionDenied as access refusal, and
// BadPath as a generic I/O error, matching spec §7's error-to-errno table.
func toFuseErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, pcerr.CacheMiss):
		return errnoError{err, fuse.Errno(syscall.ENODATA)}
	case errors.Is(err, pcerr.NotImplemented):
		return errnoError{err, fuse.Errno(syscall.ENOSYS)}
	case errors.Is(err, pcerr.PermissionDenied):
		return errnoError{err, fuse.Errno(syscall.EACCES)}
	case errors.Is(err, pcerr.BadPath):
		return errnoError{err, fuse.Errno(syscall.EIO)}
	case errors.Is(err, pcerr.InvalidRange):
		return errnoError{err, fuse.Errno(syscall.EIO)}
	default:
		return errnoError{err, fuse.Errno(syscall.EIO)}
	}
}
