package ranges

import "sort"

// Ranges is a canonicalized set of Range values over a single file: no two
// members overlap, no two members are adjacent (touching ranges are always
// merged), and members are kept in ascending order of Pos. This is the
// RangeSet of the caching engine's data model.
type Ranges []Range

// FoundRange is one homogeneous (wholly covered or wholly uncovered)
// sub-range produced by FindAll.
type FoundRange struct {
	R       Range
	Present bool
}

// merge attempts to fold new into dst, which succeeds when the two ranges
// overlap or touch. On success dst is replaced by their union and true is
// returned; otherwise dst is left untouched and false is returned.
func merge(new, dst *Range) bool {
	if new.Pos > dst.End() || new.End() < dst.Pos {
		return false
	}
	pos := new.Pos
	if dst.Pos < pos {
		pos = dst.Pos
	}
	end := new.End()
	if dst.End() > end {
		end = dst.End()
	}
	dst.Pos, dst.Size = pos, end-pos
	return true
}

// coalesce re-establishes the no-overlap/no-adjacency invariant around
// index i, merging rs[i] into its left neighbor if they touch, then
// absorbing as many right neighbors as touch the (possibly now larger)
// range at its new position.
func (rs *Ranges) coalesce(i int) {
	s := *rs
	if i > 0 && merge(&s[i], &s[i-1]) {
		s = append(s[:i], s[i+1:]...)
		i--
	}
	for i+1 < len(s) && merge(&s[i+1], &s[i]) {
		s = append(s[:i+1], s[i+2:]...)
	}
	*rs = s
}

// Insert adds r to the set, merging it with any overlapping or adjacent
// members and re-canonicalizing. Inserting an empty range is a no-op. This
// is the "add" operation of the range algebra.
func (rs *Ranges) Insert(r Range) {
	if r.IsEmpty() {
		return
	}
	s := *rs
	i := sort.Search(len(s), func(i int) bool { return s[i].Pos >= r.Pos })
	s = append(s, Range{})
	copy(s[i+1:], s[i:])
	s[i] = r
	*rs = s
	rs.coalesce(i)
}

// Find locates the single homogeneous (wholly covered or wholly uncovered)
// sub-range of r starting at r.Pos. It returns that sub-range as curr,
// along with present (whether curr is covered) and next, the remainder of
// r after curr. next has zero Size when curr reaches the end of r, and is
// the zero Range when no member of rs overlaps r (curr is then r itself).
func (rs Ranges) Find(r Range) (curr, next Range, present bool) {
	if r.IsEmpty() {
		return r, Range{}, false
	}
	j := sort.Search(len(rs), func(i int) bool { return rs[i].End() > r.Pos })
	if j == len(rs) || rs[j].Pos >= r.End() {
		return r, Range{}, false
	}
	fr := rs[j]
	if fr.Pos <= r.Pos {
		curr = fr.Intersection(r)
		present = true
	} else {
		curr = Range{Pos: r.Pos, Size: fr.Pos - r.Pos}
		present = false
	}
	next = Range{Pos: curr.End(), Size: r.End() - curr.End()}
	return curr, next, present
}

// FindAll partitions r into maximal homogeneous sub-ranges, in ascending
// order, each tagged with whether it is covered by rs.
func (rs Ranges) FindAll(r Range) []FoundRange {
	if r.IsEmpty() {
		return nil
	}
	var out []FoundRange
	for {
		curr, next, present := rs.Find(r)
		out = append(out, FoundRange{R: curr, Present: present})
		if next.Size <= 0 {
			break
		}
		r = next
	}
	return out
}

// UncoveredWithin returns the ordered list of maximal sub-ranges of r not
// covered by rs. The result is empty iff r is fully covered.
func (rs Ranges) UncoveredWithin(r Range) []Range {
	var out []Range
	for _, fr := range rs.FindAll(r) {
		if !fr.Present {
			out = append(out, fr.R)
		}
	}
	return out
}

// Present reports whether every offset of r is covered by rs.
func (rs Ranges) Present(r Range) bool {
	if r.IsEmpty() {
		return true
	}
	for _, fr := range rs.FindAll(r) {
		if !fr.Present {
			return false
		}
	}
	return true
}

// Equal reports whether rs and other describe the same set of offsets.
// Both must already be canonicalized.
func (rs Ranges) Equal(other Ranges) bool {
	if len(rs) != len(other) {
		return false
	}
	for i := range rs {
		if rs[i] != other[i] {
			return false
		}
	}
	return true
}
