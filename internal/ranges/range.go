// Package ranges implements the range algebra at the heart of pcachefs's
// caching engine: a value type for half-open byte intervals, and a
// canonicalized set of such intervals ("Ranges") supporting insertion and
// the uncovered-portion query the engine uses to decide what to fetch.
package ranges

import (
	"fmt"

	"github.com/jtyers/pcachefs/internal/pcerr"
)

// Range is a half-open interval [Pos, Pos+Size) of non-negative file
// offsets.
type Range struct {
	Pos  int64
	Size int64
}

// New constructs a Range, failing with pcerr.InvalidRange if Size is not
// positive or Pos is negative.
func New(pos, size int64) (Range, error) {
	if pos < 0 || size <= 0 {
		return Range{}, fmt.Errorf("range{pos: %d, size: %d}: %w", pos, size, pcerr.InvalidRange)
	}
	return Range{Pos: pos, Size: size}, nil
}

// End returns the exclusive end offset of the range.
func (r Range) End() int64 {
	return r.Pos + r.Size
}

// IsEmpty reports whether the range covers no offsets at all.
func (r Range) IsEmpty() bool {
	return r.Size <= 0
}

// Clip shrinks r in place so that it does not extend past limit.
func (r *Range) Clip(limit int64) {
	if r.Pos > limit {
		r.Pos = 0
		r.Size = 0
		return
	}
	if r.End() > limit {
		r.Size = limit - r.Pos
	}
}

// Intersection returns the overlap between r and b, or the zero Range if
// they do not overlap.
func (r Range) Intersection(b Range) Range {
	pos := max(r.Pos, b.Pos)
	end := min(r.End(), b.End())
	if end <= pos {
		return Range{}
	}
	return Range{Pos: pos, Size: end - pos}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Pos, r.End())
}

func max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
