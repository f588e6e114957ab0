// Package layout assigns month-view events to per-day row slots so that
// multi-day events render as continuous bars within a week row, and
// computes the per-day overflow count.
package layout

import (
	"cmp"
	"slices"
	"time"

	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
)

const (
	// DefaultMaxVisible is the number of event rows drawn per day cell.
	DefaultMaxVisible = 3
	// DefaultMaxSpanDays is the span above which an event is reported.
	DefaultMaxSpanDays = 366
)

// Order selects the event-processing order, which decides who wins a slot.
type Order int

const (
	// OrderStart processes events by start ascending; simultaneous starts
	// go shortest first, then by input position.
	OrderStart Order = iota
	// OrderDuration processes events by duration ascending, then start.
	OrderDuration
	// OrderInput keeps the caller's order.
	OrderInput
)

// ParseOrder maps "start", "duration" and "input" to an Order.
func ParseOrder(s string) (Order, bool) {
	switch s {
	case "start", "":
		return OrderStart, true
	case "duration":
		return OrderDuration, true
	case "input":
		return OrderInput, true
	default:
		return OrderStart, false
	}
}

func (o Order) String() string {
	switch o {
	case OrderDuration:
		return "duration"
	case OrderInput:
		return "input"
	default:
		return "start"
	}
}

// Options configures Allocate.
type Options struct {
	// WeekStart is the weekday on which a new grid row begins.
	WeekStart time.Weekday
	// MaxVisible caps the rows drawn per cell. Negative values act as 0.
	MaxVisible int
	// SlotLimit bounds the slot table per day; 0 means unbounded.
	SlotLimit int
	Order     Order
	// Location decides which calendar day an instant falls on.
	// Nil means time.Local.
	Location *time.Location
	// MaxSpanDays is the span length above which an event is logged.
	// Zero means DefaultMaxSpanDays.
	MaxSpanDays int
}

// DefaultOptions returns Sunday-start weeks, three visible rows and
// unbounded slots in the local timezone.
func DefaultOptions() Options {
	return Options{
		WeekStart:   time.Sunday,
		MaxVisible:  DefaultMaxVisible,
		Order:       OrderStart,
		Location:    time.Local,
		MaxSpanDays: DefaultMaxSpanDays,
	}
}

func (o Options) normalized() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.MaxVisible < 0 {
		o.MaxVisible = 0
	}
	if o.SlotLimit < 0 {
		o.SlotLimit = 0
	}
	if o.MaxSpanDays <= 0 {
		o.MaxSpanDays = DefaultMaxSpanDays
	}
	return o
}

// Key derives the day key of t exactly as Allocate does.
func (o Options) Key(t time.Time) daykey.Key {
	return daykey.Of(t, o.normalized().Location)
}

// Day is the placement of events on one calendar day.
type Day struct {
	Key daykey.Key
	// Slots holds the event drawn in each row; nil marks an empty row.
	Slots []*model.Event
	// Count is the number of events touching the day, placed or not.
	Count int
	// Renderable is the number of events drawn within the visible rows.
	Renderable int
	// More is Count - Renderable.
	More int

	visible int
}

// Visible returns the slots drawn in the cell, empty rows included.
func (d Day) Visible() []*model.Event {
	n := min(len(d.Slots), d.visible)
	return d.Slots[:n]
}

// Filled returns the number of occupied slots.
func (d Day) Filled() int {
	n := 0
	for _, ev := range d.Slots {
		if ev != nil {
			n++
		}
	}
	return n
}

// SlotOf returns the slot holding the event with the given ID, or -1.
func (d Day) SlotOf(id string) int {
	for i, ev := range d.Slots {
		if ev != nil && ev.ID == id {
			return i
		}
	}
	return -1
}

// Layout is the result of Allocate. It is not modified after construction.
type Layout struct {
	grid      grid.Grid
	opts      Options
	days      map[daykey.Key]*Day
	skipped   int
	conflicts int
}

// Allocate lays events out on the grid. It never fails: events whose End
// precedes Start are skipped and slot exhaustion only raises More.
//
// Each event takes the lowest free slot on the first day it touches in a
// week row and keeps that slot for the rest of the row. When the slot is
// already taken on a later day the continuation is not drawn there. Only
// days that are cells of g appear in the result.
func Allocate(events []model.Event, g grid.Grid, opts Options) *Layout {
	opts = opts.normalized()
	l := &Layout{
		grid: g,
		opts: opts,
		days: make(map[daykey.Key]*Day),
	}

	// Slot choice restarts at every week boundary, so nothing outside the
	// week-aligned window can influence a cell of the grid.
	window := g.Window()
	tables := make(map[daykey.Key]*Day, window.Len())

	for _, i := range processingOrder(events, opts.Order) {
		ev := &events[i]
		span := daykey.Span(ev.Start, ev.End, opts.Location)
		if span.Empty() {
			l.skipped++
			appLog.Debug("layout: skipping event that ends before it starts",
				"id", ev.ID, "start", ev.Start.Format(time.RFC3339), "end", ev.End.Format(time.RFC3339))
			continue
		}
		if n := span.Len(); n > opts.MaxSpanDays {
			appLog.Warn("layout: event span exceeds bound", "id", ev.ID, "days", n, "max_span_days", opts.MaxSpanDays)
		}
		l.place(tables, ev, span.Clip(window.First, window.Last))
	}

	for k, d := range tables {
		if !g.Contains(k) {
			continue
		}
		d.visible = opts.MaxVisible
		for _, ev := range d.Visible() {
			if ev != nil {
				d.Renderable++
			}
		}
		d.More = d.Count - d.Renderable
		l.days[k] = d
	}
	return l
}

func (l *Layout) place(tables map[daykey.Key]*Day, ev *model.Event, span daykey.Range) {
	slot := -1
	for k := range span.All() {
		d := tables[k]
		if d == nil {
			d = &Day{Key: k}
			tables[k] = d
		}
		if k == span.First || k.Weekday() == l.opts.WeekStart {
			slot = lowestFree(d.Slots, l.opts.SlotLimit)
		}
		if slot >= 0 && !claim(d, slot, ev) {
			l.conflicts++
		}
		d.Count++
	}
}

// lowestFree returns the first empty slot, or -1 when limit is reached.
func lowestFree(slots []*model.Event, limit int) int {
	for i, ev := range slots {
		if ev == nil {
			return i
		}
	}
	if limit > 0 && len(slots) >= limit {
		return -1
	}
	return len(slots)
}

// claim puts ev into slot unless another event already holds it.
func claim(d *Day, slot int, ev *model.Event) bool {
	for len(d.Slots) <= slot {
		d.Slots = append(d.Slots, nil)
	}
	if d.Slots[slot] != nil {
		return false
	}
	d.Slots[slot] = ev
	return true
}

func processingOrder(events []model.Event, o Order) []int {
	idx := make([]int, len(events))
	for i := range idx {
		idx[i] = i
	}
	byStart := func(a, b int) int {
		return events[a].Start.Compare(events[b].Start)
	}
	byDuration := func(a, b int) int {
		return cmp.Compare(events[a].Duration(), events[b].Duration())
	}
	switch o {
	case OrderInput:
	case OrderDuration:
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Or(byDuration(a, b), byStart(a, b))
		})
	default:
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Or(byStart(a, b), byDuration(a, b))
		})
	}
	return idx
}

// Day returns the placement for k. The second result is false when no
// event touches k or k is not a cell of the grid; the returned Day is then
// empty but usable.
func (l *Layout) Day(k daykey.Key) (Day, bool) {
	d, ok := l.days[k]
	if !ok {
		return Day{Key: k, visible: l.opts.MaxVisible}, false
	}
	out := *d
	out.Slots = slices.Clone(d.Slots)
	return out, true
}

// Keys returns the days with at least one event, in calendar order.
func (l *Layout) Keys() []daykey.Key {
	keys := make([]daykey.Key, 0, len(l.days))
	for k := range l.days {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of days with at least one event.
func (l *Layout) Len() int { return len(l.days) }

// Grid returns the grid the layout was computed for.
func (l *Layout) Grid() grid.Grid { return l.grid }

// Options returns the normalized options used.
func (l *Layout) Options() Options { return l.opts }

// Skipped returns how many events were ignored for ending before they start.
func (l *Layout) Skipped() int { return l.skipped }

// Conflicts returns how many continuation days found their slot taken.
func (l *Layout) Conflicts() int { return l.conflicts }

// MoreLabel formats the overflow label of k with template.
func (l *Layout) MoreLabel(k daykey.Key, template string) string {
	d, _ := l.Day(k)
	return FormatMore(template, d.More, d.Count)
}
