package daykey

import (
	"iter"
	"time"
)

// Range is an inclusive span of calendar days. A Range whose Last precedes
// First is empty.
type Range struct {
	First Key
	Last  Key
}

// Span returns the days touched by an event running from start to end,
// both truncated to the calendar day in loc. When end is before start the
// result is empty.
func Span(start, end time.Time, loc *time.Location) Range {
	if end.Before(start) {
		return Range{}
	}
	return Range{First: Of(start, loc), Last: Of(end, loc)}
}

// Empty reports whether r contains no day.
func (r Range) Empty() bool {
	return r.First.IsZero() || r.Last.IsZero() || r.Last < r.First
}

// Len returns the number of days in r.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.First.DaysUntil(r.Last) + 1
}

// Contains reports whether k falls inside r.
func (r Range) Contains(k Key) bool {
	return !r.Empty() && k >= r.First && k <= r.Last
}

// Clip intersects r with [lo, hi].
func (r Range) Clip(lo, hi Key) Range {
	if r.Empty() {
		return Range{}
	}
	out := r
	if out.First < lo {
		out.First = lo
	}
	if out.Last > hi {
		out.Last = hi
	}
	if out.Empty() {
		return Range{}
	}
	return out
}

// All yields every day of r in order. The sequence can be ranged over any
// number of times.
func (r Range) All() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		if r.Empty() {
			return
		}
		n := r.Len()
		k := r.First
		for i := 0; i < n; i++ {
			if !yield(k) {
				return
			}
			k = k.AddDays(1)
		}
	}
}
