// Package pcerr defines the sentinel error values shared across pcachefs's
// core components, following the same errors.Is-based categorization the
// rest of the ecosystem uses instead of bespoke error structs.
package pcerr

import "errors"

var (
	// CacheMiss is returned when cache-only mode is active and satisfying
	// a request would require an origin round-trip.
	CacheMiss = errors.New("cache miss")

	// NotImplemented is returned by write-family operations on mirrored
	// paths.
	NotImplemented = errors.New("not implemented")

	// PermissionDenied is returned when open requests a non-read-only
	// flag combination on a mirrored path.
	PermissionDenied = errors.New("permission denied")

	// BadPath is returned when a logical path does not begin with the
	// expected leading separator.
	BadPath = errors.New("bad path")

	// InvalidRange is returned when a Range is constructed with a
	// non-positive size or a negative position.
	InvalidRange = errors.New("invalid range")
)
