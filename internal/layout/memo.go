package layout

import (
	"sync"
	"time"

	"monthcal/internal/grid"
	"monthcal/internal/model"
)

type memoKey struct {
	first     *model.Event
	n         int
	year      int
	month     time.Month
	weekStart time.Weekday
	adjacent  bool
	opts      Options
}

// Memo caches the most recent layout and returns it again while the event
// slice (by identity), the grid page and the options are unchanged.
// Callers that mutate a slice in place must pass a new slice to force a
// recompute.
type Memo struct {
	mu     sync.Mutex
	key    memoKey
	result *Layout
	hits   int
	misses int
}

// Allocate returns the cached layout or computes a fresh one.
func (m *Memo) Allocate(events []model.Event, g grid.Grid, opts Options) *Layout {
	opts = opts.normalized()
	y, mo := g.Target()
	key := memoKey{
		n:         len(events),
		year:      y,
		month:     mo,
		weekStart: g.WeekStart(),
		adjacent:  g.ShowAdjacent(),
		opts:      opts,
	}
	if len(events) > 0 {
		key.first = &events[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result != nil && m.key == key {
		m.hits++
		return m.result
	}
	m.misses++
	m.key = key
	m.result = Allocate(events, g, opts)
	return m.result
}

// Stats returns cache hits and misses so far.
func (m *Memo) Stats() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
