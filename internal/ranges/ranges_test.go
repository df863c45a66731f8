package ranges

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jtyers/pcachefs/internal/pcerr"
)

func TestRangeEnd(t *testing.T) {
	assert.Equal(t, int64(3), Range{Pos: 1, Size: 2}.End())
}

func TestRangeIsEmpty(t *testing.T) {
	assert.False(t, Range{Pos: 1, Size: 2}.IsEmpty())
	assert.True(t, Range{Pos: 1, Size: 0}.IsEmpty())
	assert.True(t, Range{Pos: 1, Size: -1}.IsEmpty())
}

func TestNewRejectsInvalid(t *testing.T) {
	_, err := New(0, 0)
	assert.ErrorIs(t, err, pcerr.InvalidRange)

	_, err = New(-1, 5)
	assert.ErrorIs(t, err, pcerr.InvalidRange)

	r, err := New(1, 2)
	assert.NoError(t, err)
	assert.Equal(t, Range{Pos: 1, Size: 2}, r)
}

func TestRangeClip(t *testing.T) {
	r := Range{Pos: 1, Size: 2}
	r.Clip(5)
	assert.Equal(t, Range{Pos: 1, Size: 2}, r)

	r = Range{Pos: 1, Size: 6}
	r.Clip(5)
	assert.Equal(t, Range{Pos: 1, Size: 4}, r)

	r = Range{Pos: 5, Size: 6}
	r.Clip(5)
	assert.Equal(t, Range{Pos: 5, Size: 0}, r)

	r = Range{Pos: 7, Size: 6}
	r.Clip(5)
	assert.Equal(t, Range{Pos: 0, Size: 0}, r)
}

func TestRangeIntersection(t *testing.T) {
	for _, test := range []struct {
		r, b, want Range
	}{
		{r: Range{1, 1}, b: Range{3, 1}, want: Range{}},
		{r: Range{1, 1}, b: Range{1, 1}, want: Range{1, 1}},
		{r: Range{1, 9}, b: Range{3, 2}, want: Range{3, 2}},
		{r: Range{1, 5}, b: Range{3, 5}, want: Range{3, 3}},
	} {
		what := fmt.Sprintf("r=%v b=%v", test.r, test.b)
		assert.Equal(t, test.want, test.r.Intersection(test.b), what)
		assert.Equal(t, test.want, test.b.Intersection(test.r), what)
	}
}

func checkCanonical(t *testing.T, rs Ranges, what string) bool {
	t.Helper()
	ok := true
	for i := 0; i+1 < len(rs); i++ {
		a, b := rs[i], rs[i+1]
		if a.Pos >= b.Pos {
			assert.Failf(t, "out of order", "%s: %v at %d", what, rs, i)
			ok = false
		}
		if a.End() > b.Pos {
			assert.Failf(t, "overlap", "%s: %v at %d", what, rs, i)
			ok = false
		}
		if a.End() == b.Pos {
			assert.Failf(t, "not coalesced", "%s: %v at %d", what, rs, i)
			ok = false
		}
	}
	return ok
}

func TestInsert(t *testing.T) {
	for _, test := range []struct {
		new  Range
		rs   Ranges
		want Ranges
	}{
		{new: Range{Pos: 1, Size: 0}, rs: Ranges{}, want: Ranges(nil)},
		{new: Range{Pos: 1, Size: 1}, rs: Ranges{}, want: Ranges{{Pos: 1, Size: 1}}},
		{
			new:  Range{Pos: 1, Size: 1},
			rs:   Ranges{{Pos: 5, Size: 1}},
			want: Ranges{{Pos: 1, Size: 1}, {Pos: 5, Size: 1}},
		},
		{
			new:  Range{Pos: 5, Size: 1},
			rs:   Ranges{{Pos: 1, Size: 1}},
			want: Ranges{{Pos: 1, Size: 1}, {Pos: 5, Size: 1}},
		},
		{
			new:  Range{Pos: 1, Size: 1},
			rs:   Ranges{{Pos: 2, Size: 1}},
			want: Ranges{{Pos: 1, Size: 2}},
		},
		{
			new:  Range{Pos: 2, Size: 1},
			rs:   Ranges{{Pos: 1, Size: 1}},
			want: Ranges{{Pos: 1, Size: 2}},
		},
		{
			new:  Range{Pos: 51, Size: 10},
			rs:   Ranges{{38, 8}, {57, 2}, {60, 3}},
			want: Ranges{{38, 8}, {51, 12}},
		},
	} {
		got := append(Ranges(nil), test.rs...)
		got.Insert(test.new)
		what := fmt.Sprintf("new=%v rs=%v", test.new, test.rs)
		assert.Equal(t, test.want, got, what)
		checkCanonical(t, got, what)
	}
}

func TestInsertIdempotent(t *testing.T) {
	var s Ranges
	r := Range{Pos: 3, Size: 4}
	s.Insert(r)
	first := append(Ranges(nil), s...)
	s.Insert(r)
	assert.Equal(t, first, s)
}

func TestInsertCommutes(t *testing.T) {
	a, b := Range{Pos: 1, Size: 3}, Range{Pos: 10, Size: 5}
	var s1, s2 Ranges
	s1.Insert(a)
	s1.Insert(b)
	s2.Insert(b)
	s2.Insert(a)
	assert.True(t, s1.Equal(s2))
}

func TestInsertRandom(t *testing.T) {
	for i := 0; i < 50; i++ {
		var rs Ranges
		for j := 0; j < 80; j++ {
			r := Range{Pos: rand.Int63n(100), Size: rand.Int63n(10) + 1}
			what := fmt.Sprintf("inserting %v into %v", r, rs)
			rs.Insert(r)
			if !checkCanonical(t, rs, what) {
				break
			}
		}
	}
}

func TestFind(t *testing.T) {
	for _, test := range []struct {
		rs          Ranges
		r           Range
		wantCurr    Range
		wantNext    Range
		wantPresent bool
	}{
		{r: Range{Pos: 1, Size: 0}, rs: Ranges{}, wantCurr: Range{Pos: 1, Size: 0}, wantNext: Range{}, wantPresent: false},
		{r: Range{Pos: 1, Size: 1}, rs: Ranges{}, wantCurr: Range{Pos: 1, Size: 1}, wantNext: Range{}, wantPresent: false},
		{
			r: Range{Pos: 1, Size: 2}, rs: Ranges{{Pos: 1, Size: 10}},
			wantCurr: Range{Pos: 1, Size: 2}, wantNext: Range{Pos: 3, Size: 0}, wantPresent: true,
		},
		{
			r: Range{Pos: 1, Size: 10}, rs: Ranges{{Pos: 1, Size: 2}},
			wantCurr: Range{Pos: 1, Size: 2}, wantNext: Range{Pos: 3, Size: 8}, wantPresent: true,
		},
		{
			r: Range{Pos: 1, Size: 2}, rs: Ranges{{Pos: 5, Size: 2}},
			wantCurr: Range{Pos: 1, Size: 2}, wantNext: Range{}, wantPresent: false,
		},
		{
			r: Range{Pos: 2, Size: 10}, rs: Ranges{{Pos: 1, Size: 2}},
			wantCurr: Range{Pos: 2, Size: 1}, wantNext: Range{Pos: 3, Size: 9}, wantPresent: true,
		},
		{
			r: Range{Pos: 1, Size: 9}, rs: Ranges{{Pos: 2, Size: 1}, {Pos: 4, Size: 1}},
			wantCurr: Range{Pos: 1, Size: 1}, wantNext: Range{Pos: 2, Size: 8}, wantPresent: false,
		},
		{
			r: Range{Pos: 5, Size: 5}, rs: Ranges{{Pos: 2, Size: 1}, {Pos: 4, Size: 1}},
			wantCurr: Range{Pos: 5, Size: 5}, wantNext: Range{}, wantPresent: false,
		},
	} {
		what := fmt.Sprintf("r=%v rs=%v", test.r, test.rs)
		checkCanonical(t, test.rs, what)
		gotCurr, gotNext, gotPresent := test.rs.Find(test.r)
		assert.Equal(t, test.wantCurr, gotCurr, what)
		assert.Equal(t, test.wantNext, gotNext, what)
		assert.Equal(t, test.wantPresent, gotPresent, what)
	}
}

func TestFindAll(t *testing.T) {
	rs := Ranges{{Pos: 4, Size: 2}, {Pos: 7, Size: 1}, {Pos: 9, Size: 2}}
	got := rs.FindAll(Range{Pos: 5, Size: 5})
	want := []FoundRange{
		{R: Range{Pos: 5, Size: 1}, Present: true},
		{R: Range{Pos: 6, Size: 1}, Present: false},
		{R: Range{Pos: 7, Size: 1}, Present: true},
		{R: Range{Pos: 8, Size: 1}, Present: false},
		{R: Range{Pos: 9, Size: 1}, Present: true},
	}
	assert.Equal(t, want, got)

	assert.Nil(t, rs.FindAll(Range{Pos: 1, Size: 0}))
}

func TestUncoveredWithin(t *testing.T) {
	rs := Ranges{{Pos: 10, Size: 20}}

	// exact member -> no uncovered portion
	assert.Empty(t, rs.UncoveredWithin(Range{Pos: 10, Size: 20}))

	// straddles a gap between two covered ranges -> exactly one uncovered range
	rs = Ranges{{Pos: 0, Size: 10}, {Pos: 20, Size: 10}}
	got := rs.UncoveredWithin(Range{Pos: 5, Size: 20})
	assert.Equal(t, []Range{{Pos: 10, Size: 10}}, got)
}

func TestUncoveredWithinUnionCoversQuery(t *testing.T) {
	for i := 0; i < 30; i++ {
		var rs Ranges
		for j := 0; j < 10; j++ {
			rs.Insert(Range{Pos: rand.Int63n(50), Size: rand.Int63n(10) + 1})
		}
		q := Range{Pos: rand.Int63n(50), Size: rand.Int63n(30) + 1}
		uncovered := rs.UncoveredWithin(q)

		covered := append(Ranges(nil), rs...)
		for _, u := range uncovered {
			covered.Insert(u)
		}
		assert.True(t, covered.Present(q), "union of rs and uncovered_within(q) must cover q")

		for _, u := range uncovered {
			assert.False(t, rs.Present(u), "uncovered portion must not already be in rs")
		}
	}
}

func TestPresent(t *testing.T) {
	for _, test := range []struct {
		rs   Ranges
		r    Range
		want bool
	}{
		{r: Range{Pos: 1, Size: 0}, rs: Ranges{}, want: true},
		{r: Range{Pos: 0, Size: 1}, rs: Ranges{}, want: false},
		{r: Range{Pos: 1, Size: 2}, rs: Ranges{{Pos: 1, Size: 1}}, want: false},
		{r: Range{Pos: 1, Size: 2}, rs: Ranges{{Pos: 1, Size: 2}}, want: true},
		{r: Range{Pos: 1, Size: 2}, rs: Ranges{{Pos: 1, Size: 10}}, want: true},
		{r: Range{Pos: 1, Size: 2}, rs: Ranges{{Pos: 5, Size: 2}}, want: false},
	} {
		what := fmt.Sprintf("r=%v rs=%v", test.r, test.rs)
		assert.Equal(t, test.want, test.rs.Present(test.r), what)
	}
}
