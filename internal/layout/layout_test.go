package layout

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	"monthcal/internal/model"
)

const stamp = "2006-01-02T15:04"

func ev(t testing.TB, id, start, end string) model.Event {
	t.Helper()
	s, err := time.ParseInLocation(stamp, start, time.UTC)
	if err != nil {
		t.Fatalf("bad start %q: %v", start, err)
	}
	e, err := time.ParseInLocation(stamp, end, time.UTC)
	if err != nil {
		t.Fatalf("bad end %q: %v", end, err)
	}
	return model.Event{ID: id, Title: id, Start: s, End: e}
}

func utcOptions(weekStart time.Weekday) Options {
	opts := DefaultOptions()
	opts.WeekStart = weekStart
	opts.Location = time.UTC
	return opts
}

func march(weekStart time.Weekday, adjacent bool) grid.Grid {
	return grid.Month(2024, time.March, weekStart, adjacent)
}

func mustDay(t *testing.T, l *Layout, k daykey.Key) Day {
	t.Helper()
	d, ok := l.Day(k)
	if !ok {
		t.Fatalf("no placement for %s", k)
	}
	return d
}

func TestSingleDayEvent(t *testing.T) {
	events := []model.Event{ev(t, "a", "2024-03-05T00:00", "2024-03-05T23:59")}
	l := Allocate(events, march(time.Sunday, false), utcOptions(time.Sunday))

	if l.Len() != 1 {
		t.Fatalf("expected exactly one day, got %v", l.Keys())
	}
	d := mustDay(t, l, 20240305)
	if d.Count != 1 || len(d.Slots) != 1 || d.Slots[0].ID != "a" {
		t.Fatalf("unexpected placement %+v", d)
	}
	if d.Renderable != 1 || d.More != 0 {
		t.Fatalf("renderable/more = %d/%d", d.Renderable, d.More)
	}
}

func TestWeekBoundaryReassignsSlot(t *testing.T) {
	events := []model.Event{
		ev(t, "span", "2024-03-02T10:00", "2024-03-04T09:00"),
		ev(t, "early", "2024-03-02T00:00", "2024-03-02T01:00"),
	}

	t.Run("sunday start", func(t *testing.T) {
		l := Allocate(events, march(time.Sunday, false), utcOptions(time.Sunday))
		want := map[daykey.Key]int{20240302: 1, 20240303: 0, 20240304: 0}
		for k, slot := range want {
			if got := mustDay(t, l, k).SlotOf("span"); got != slot {
				t.Errorf("%s: slot = %d, want %d", k, got, slot)
			}
		}
	})

	t.Run("monday start", func(t *testing.T) {
		l := Allocate(events, march(time.Monday, false), utcOptions(time.Monday))
		want := map[daykey.Key]int{20240302: 1, 20240303: 1, 20240304: 0}
		for k, slot := range want {
			if got := mustDay(t, l, k).SlotOf("span"); got != slot {
				t.Errorf("%s: slot = %d, want %d", k, got, slot)
			}
		}
	})
}

func TestOverflow(t *testing.T) {
	var events []model.Event
	for i := 0; i < 4; i++ {
		events = append(events, ev(t, fmt.Sprintf("e%d", i), fmt.Sprintf("2024-03-10T%02d:00", 8+i), "2024-03-10T20:00"))
	}
	opts := utcOptions(time.Sunday)
	opts.MaxVisible = 3
	l := Allocate(events, march(time.Sunday, false), opts)

	d := mustDay(t, l, 20240310)
	if d.Count != 4 || d.Renderable != 3 || d.More != 1 {
		t.Fatalf("count/renderable/more = %d/%d/%d, want 4/3/1", d.Count, d.Renderable, d.More)
	}
	if len(d.Visible()) != 3 {
		t.Fatalf("visible = %d", len(d.Visible()))
	}
	if got := l.MoreLabel(20240310, "+{moreCount} of {count}"); got != "+1 of 4" {
		t.Fatalf("label = %q", got)
	}
}

func TestDegenerateEvent(t *testing.T) {
	events := []model.Event{ev(t, "bad", "2024-03-05T10:00", "2024-03-04T10:00")}
	done := make(chan *Layout, 1)
	go func() { done <- Allocate(events, march(time.Sunday, false), utcOptions(time.Sunday)) }()

	select {
	case l := <-done:
		if l.Len() != 0 {
			t.Fatalf("degenerate event produced placements: %v", l.Keys())
		}
		if l.Skipped() != 1 {
			t.Fatalf("skipped = %d", l.Skipped())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("allocation did not terminate")
	}
}

func TestPointEventIsPlaced(t *testing.T) {
	events := []model.Event{ev(t, "p", "2024-03-05T10:00", "2024-03-05T10:00")}
	l := Allocate(events, march(time.Sunday, false), utcOptions(time.Sunday))
	if d := mustDay(t, l, 20240305); d.SlotOf("p") != 0 {
		t.Fatalf("point event not placed: %+v", d)
	}
}

func TestMissingDayLookup(t *testing.T) {
	l := Allocate(nil, march(time.Sunday, false), utcOptions(time.Sunday))
	d, ok := l.Day(20240305)
	if ok {
		t.Fatalf("expected no placement")
	}
	if d.Count != 0 || len(d.Visible()) != 0 || d.Key != 20240305 {
		t.Fatalf("empty day not usable: %+v", d)
	}
	if got := l.MoreLabel(20240305, ""); got != "0 More" {
		t.Fatalf("label = %q", got)
	}
}

func TestContinuationConflictIsDropped(t *testing.T) {
	events := []model.Event{
		ev(t, "blocker", "2024-03-06T09:00", "2024-03-06T10:00"),
		ev(t, "span", "2024-03-05T09:00", "2024-03-07T10:00"),
	}
	opts := utcOptions(time.Sunday)
	opts.Order = OrderInput
	l := Allocate(events, march(time.Sunday, false), opts)

	if got := mustDay(t, l, 20240305).SlotOf("span"); got != 0 {
		t.Fatalf("03-05 slot = %d", got)
	}
	mid := mustDay(t, l, 20240306)
	if mid.SlotOf("blocker") != 0 || mid.SlotOf("span") != -1 {
		t.Fatalf("03-06 slots = %+v", mid.Slots)
	}
	if mid.Count != 2 || mid.Renderable != 1 || mid.More != 1 {
		t.Fatalf("03-06 count/renderable/more = %d/%d/%d", mid.Count, mid.Renderable, mid.More)
	}
	if got := mustDay(t, l, 20240307).SlotOf("span"); got != 0 {
		t.Fatalf("03-07 slot = %d", got)
	}
	if l.Conflicts() != 1 {
		t.Fatalf("conflicts = %d", l.Conflicts())
	}
}

func TestSlotLimit(t *testing.T) {
	var events []model.Event
	for i := 0; i < 4; i++ {
		events = append(events, ev(t, fmt.Sprintf("e%d", i), fmt.Sprintf("2024-03-12T%02d:00", 8+i), "2024-03-13T20:00"))
	}
	opts := utcOptions(time.Sunday)
	opts.SlotLimit = 3
	l := Allocate(events, march(time.Sunday, false), opts)

	for _, k := range []daykey.Key{20240312, 20240313} {
		d := mustDay(t, l, k)
		if len(d.Slots) != 3 || d.SlotOf("e3") != -1 {
			t.Fatalf("%s: slots = %d, e3 slot = %d", k, len(d.Slots), d.SlotOf("e3"))
		}
		if d.Count != 4 || d.More != 1 {
			t.Fatalf("%s: count/more = %d/%d", k, d.Count, d.More)
		}
	}
}

func TestTieBreak(t *testing.T) {
	events := []model.Event{
		ev(t, "long", "2024-03-05T09:00", "2024-03-05T18:00"),
		ev(t, "short", "2024-03-05T09:00", "2024-03-05T09:30"),
		ev(t, "later", "2024-03-05T08:00", "2024-03-05T08:15"),
	}
	tests := []struct {
		order Order
		want  []string
	}{
		{OrderStart, []string{"later", "short", "long"}},
		{OrderDuration, []string{"later", "short", "long"}},
		{OrderInput, []string{"long", "short", "later"}},
	}
	for _, tt := range tests {
		t.Run(tt.order.String(), func(t *testing.T) {
			opts := utcOptions(time.Sunday)
			opts.Order = tt.order
			d := mustDay(t, Allocate(events, march(time.Sunday, false), opts), 20240305)
			for slot, id := range tt.want {
				if d.Slots[slot].ID != id {
					t.Fatalf("slot %d = %s, want %s", slot, d.Slots[slot].ID, id)
				}
			}
		})
	}
}

func TestDurationOrderBeatsStart(t *testing.T) {
	events := []model.Event{
		ev(t, "week", "2024-03-04T09:00", "2024-03-08T09:00"),
		ev(t, "meeting", "2024-03-06T09:00", "2024-03-06T10:00"),
	}
	opts := utcOptions(time.Sunday)
	opts.Order = OrderDuration
	l := Allocate(events, march(time.Sunday, false), opts)
	d := mustDay(t, l, 20240306)
	if d.SlotOf("meeting") != 0 || d.SlotOf("week") != -1 {
		t.Fatalf("duration order should let the short event win 03-06: %+v", d.Slots)
	}

	opts.Order = OrderStart
	l = Allocate(events, march(time.Sunday, false), opts)
	d = mustDay(t, l, 20240306)
	if d.SlotOf("week") != 0 || d.SlotOf("meeting") != 1 {
		t.Fatalf("start order should keep the week bar on top: %+v", d.Slots)
	}
}

func TestPaddingDaysShapeTheRow(t *testing.T) {
	// Feb 28th and 29th are padding cells of the March page but share the
	// row with March 1st and 2nd.
	events := []model.Event{
		ev(t, "feb", "2024-02-28T08:00", "2024-02-28T09:00"),
		ev(t, "cross", "2024-02-28T10:00", "2024-03-02T10:00"),
	}
	l := Allocate(events, march(time.Sunday, false), utcOptions(time.Sunday))

	if _, ok := l.Day(20240228); ok {
		t.Fatalf("padding day must not appear in the result")
	}
	for _, k := range []daykey.Key{20240301, 20240302} {
		if got := mustDay(t, l, k).SlotOf("cross"); got != 1 {
			t.Fatalf("%s: slot = %d, want 1", k, got)
		}
	}

	l = Allocate(events, march(time.Sunday, true), utcOptions(time.Sunday))
	if d := mustDay(t, l, 20240228); d.Count != 2 {
		t.Fatalf("adjacent day count = %d", d.Count)
	}
}

func TestLocationDecidesTheDay(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skipf("timezone unavailable: %v", err)
	}
	events := []model.Event{ev(t, "late", "2024-03-05T20:00", "2024-03-05T21:00")}
	opts := utcOptions(time.Sunday)
	opts.Location = seoul
	l := Allocate(events, march(time.Sunday, false), opts)
	if _, ok := l.Day(20240306); !ok {
		t.Fatalf("expected the event on 03-06 in Seoul, got %v", l.Keys())
	}
	if opts.Key(events[0].Start) != 20240306 {
		t.Fatalf("Options.Key disagrees with Allocate")
	}
}

func TestVeryLongEvent(t *testing.T) {
	events := []model.Event{
		ev(t, "decade", "2015-01-01T00:00", "2035-01-01T00:00"),
		ev(t, "meeting", "2024-03-15T09:00", "2024-03-15T10:00"),
	}
	l := Allocate(events, march(time.Sunday, false), utcOptions(time.Sunday))
	if l.Len() != 31 {
		t.Fatalf("expected every March day, got %d", l.Len())
	}
	d := mustDay(t, l, 20240315)
	if d.SlotOf("decade") != 0 || d.SlotOf("meeting") != 1 || d.Count != 2 {
		t.Fatalf("unexpected placement %+v", d)
	}
}

func TestOverflowNegativeMaxVisible(t *testing.T) {
	events := []model.Event{ev(t, "a", "2024-03-05T09:00", "2024-03-05T10:00")}
	opts := utcOptions(time.Sunday)
	opts.MaxVisible = -2
	d := mustDay(t, Allocate(events, march(time.Sunday, false), opts), 20240305)
	if d.Renderable != 0 || d.More != 1 {
		t.Fatalf("renderable/more = %d/%d", d.Renderable, d.More)
	}
}

func randomEvents(r *rand.Rand, n int) []model.Event {
	base := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	events := make([]model.Event, n)
	for i := range events {
		start := base.Add(time.Duration(r.Intn(50*24)) * time.Hour)
		var end time.Time
		switch r.Intn(10) {
		case 0:
			end = start.Add(-time.Hour)
		case 1, 2:
			end = start.Add(time.Duration(r.Intn(12*24)) * time.Hour)
		default:
			end = start.Add(time.Duration(r.Intn(10)) * time.Hour)
		}
		events[i] = model.Event{ID: fmt.Sprintf("e%d", i), Start: start, End: end}
	}
	return events
}

func TestProperties(t *testing.T) {
	for _, order := range []Order{OrderStart, OrderDuration, OrderInput} {
		for _, weekStart := range []time.Weekday{time.Sunday, time.Monday, time.Saturday} {
			for _, adjacent := range []bool{false, true} {
				name := fmt.Sprintf("%s/%s/adjacent=%v", order, weekStart, adjacent)
				t.Run(name, func(t *testing.T) {
					r := rand.New(rand.NewSource(int64(order)*100 + int64(weekStart)))
					events := randomEvents(r, 60)
					g := grid.Month(2024, time.March, weekStart, adjacent)
					opts := utcOptions(weekStart)
					opts.Order = order

					l := Allocate(events, g, opts)
					checkDeterminism(t, events, g, opts, l)
					checkCounts(t, events, g, l)
					checkNoDuplicates(t, l)
					checkContiguity(t, events, g, l)
					checkConservation(t, events, g, opts)
					if order == OrderStart && l.Conflicts() != 0 {
						t.Errorf("start order should never conflict, got %d", l.Conflicts())
					}
				})
			}
		}
	}
}

func checkDeterminism(t *testing.T, events []model.Event, g grid.Grid, opts Options, first *Layout) {
	t.Helper()
	second := Allocate(events, g, opts)
	if !reflect.DeepEqual(first.days, second.days) {
		t.Errorf("repeated allocation differs")
	}
}

func checkCounts(t *testing.T, events []model.Event, g grid.Grid, l *Layout) {
	t.Helper()
	for _, row := range g.Weeks() {
		for _, k := range row {
			if k.IsZero() {
				continue
			}
			want := 0
			for _, e := range events {
				if daykey.Span(e.Start, e.End, time.UTC).Contains(k) {
					want++
				}
			}
			d, _ := l.Day(k)
			if d.Count != want {
				t.Errorf("%s: count = %d, want %d", k, d.Count, want)
			}
		}
	}
}

func checkNoDuplicates(t *testing.T, l *Layout) {
	t.Helper()
	for _, k := range l.Keys() {
		d, _ := l.Day(k)
		seen := map[string]bool{}
		for _, e := range d.Slots {
			if e == nil {
				continue
			}
			if seen[e.ID] {
				t.Errorf("%s: event %s occupies two slots", k, e.ID)
			}
			seen[e.ID] = true
		}
		if d.Filled() > d.Count {
			t.Errorf("%s: filled %d > count %d", k, d.Filled(), d.Count)
		}
	}
}

func checkContiguity(t *testing.T, events []model.Event, g grid.Grid, l *Layout) {
	t.Helper()
	for _, e := range events {
		for _, row := range g.Weeks() {
			slot := -1
			for _, k := range row {
				if k.IsZero() {
					continue
				}
				d, _ := l.Day(k)
				s := d.SlotOf(e.ID)
				if s < 0 {
					continue
				}
				if slot >= 0 && s != slot {
					t.Errorf("event %s moves from slot %d to %d within row starting %s", e.ID, slot, s, row[0])
				}
				slot = s
			}
		}
	}
}

func checkConservation(t *testing.T, events []model.Event, g grid.Grid, opts Options) {
	t.Helper()
	for visible := 0; visible <= 5; visible++ {
		opts.MaxVisible = visible
		l := Allocate(events, g, opts)
		for _, k := range l.Keys() {
			d, _ := l.Day(k)
			if d.Renderable+d.More != d.Count {
				t.Errorf("%s visible=%d: %d + %d != %d", k, visible, d.Renderable, d.More, d.Count)
			}
			if d.Renderable > visible {
				t.Errorf("%s visible=%d: renderable %d", k, visible, d.Renderable)
			}
		}
	}
}

func TestMemo(t *testing.T) {
	events := []model.Event{ev(t, "a", "2024-03-05T09:00", "2024-03-05T10:00")}
	g := march(time.Sunday, false)
	opts := utcOptions(time.Sunday)

	var m Memo
	first := m.Allocate(events, g, opts)
	if again := m.Allocate(events, g, opts); again != first {
		t.Fatalf("same inputs should hit the cache")
	}

	copied := append([]model.Event(nil), events...)
	if fresh := m.Allocate(copied, g, opts); fresh == first {
		t.Fatalf("a new slice should recompute")
	}

	if other := m.Allocate(copied, grid.Month(2024, time.April, time.Sunday, false), opts); other.Grid().Rows() == 0 {
		t.Fatalf("empty grid")
	}

	hits, misses := m.Stats()
	if hits != 1 || misses != 3 {
		t.Fatalf("hits/misses = %d/%d", hits, misses)
	}
}

func TestFormatMore(t *testing.T) {
	tests := []struct {
		tmpl string
		want string
	}{
		{"", "2 More"},
		{"+{moreCount}", "+2"},
		{"{moreCount}/{count}", "2/5"},
		{"{count} events", "5 events"},
		{"no tokens", "no tokens"},
	}
	for _, tt := range tests {
		if got := FormatMore(tt.tmpl, 2, 5); got != tt.want {
			t.Errorf("FormatMore(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestParseOrder(t *testing.T) {
	for _, s := range []string{"start", "duration", "input"} {
		o, ok := ParseOrder(s)
		if !ok || o.String() != s {
			t.Errorf("ParseOrder(%q) = %v,%v", s, o, ok)
		}
	}
	if _, ok := ParseOrder("random"); ok {
		t.Errorf("unknown order accepted")
	}
}

func BenchmarkAllocate(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	events := randomEvents(r, 300)
	g := march(time.Sunday, true)
	opts := utcOptions(time.Sunday)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Allocate(events, g, opts)
	}
}
