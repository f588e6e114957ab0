package daykey

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("timezone %s unavailable: %v", name, err)
	}
	return loc
}

func TestOfTruncatesToDay(t *testing.T) {
	loc := time.UTC
	a := Of(time.Date(2024, 3, 5, 0, 0, 0, 0, loc), loc)
	b := Of(time.Date(2024, 3, 5, 23, 59, 59, 0, loc), loc)
	if a != b {
		t.Fatalf("same day produced different keys: %v vs %v", a, b)
	}
	if a != 20240305 {
		t.Fatalf("expected 20240305, got %d", a)
	}
	if a.String() != "2024-03-05" {
		t.Fatalf("unexpected string %q", a.String())
	}
}

func TestOfUsesLocation(t *testing.T) {
	seoul := mustLoad(t, "Asia/Seoul")
	// 2024-03-05 20:00 UTC is already 2024-03-06 in Seoul.
	instant := time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC)
	if got := Of(instant, time.UTC); got.String() != "2024-03-05" {
		t.Fatalf("utc key = %s", got)
	}
	if got := Of(instant, seoul); got.String() != "2024-03-06" {
		t.Fatalf("seoul key = %s", got)
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		from Key
		n    int
		want Key
	}{
		{"next day", 20240305, 1, 20240306},
		{"leap day", 20240228, 1, 20240229},
		{"month wrap", 20240229, 1, 20240301},
		{"year wrap", 20231231, 1, 20240101},
		{"backwards", 20240301, -1, 20240229},
		{"many", 20240101, 366, 20250101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.from.AddDays(tt.n)
			if got != tt.want {
				t.Fatalf("AddDays(%d) = %s, want %s", tt.n, got, tt.want)
			}
			if d := tt.from.DaysUntil(got); d != tt.n {
				t.Fatalf("DaysUntil = %d, want %d", d, tt.n)
			}
		})
	}
}

func TestWeekdayAndStartOfWeek(t *testing.T) {
	k := Key(20240302) // Saturday
	if k.Weekday() != time.Saturday {
		t.Fatalf("weekday = %v", k.Weekday())
	}
	if got := k.StartOfWeek(time.Sunday); got != 20240225 {
		t.Fatalf("sunday week start = %s", got)
	}
	if got := k.StartOfWeek(time.Monday); got != 20240226 {
		t.Fatalf("monday week start = %s", got)
	}
	if got := k.StartOfWeek(time.Saturday); got != k {
		t.Fatalf("saturday week start = %s", got)
	}
}

func TestParseAndValid(t *testing.T) {
	k, err := Parse("2024-02-29")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !k.Valid() {
		t.Fatalf("expected valid key")
	}
	if _, err := Parse("2023-02-29"); err == nil {
		t.Fatalf("expected error for non-existent date")
	}
	if Key(20230229).Valid() {
		t.Fatalf("20230229 must be invalid")
	}
	if Key(0).Valid() {
		t.Fatalf("zero key must be invalid")
	}
}

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in    string
		year  int
		month time.Month
		ok    bool
	}{
		{"2024-03", 2024, time.March, true},
		{"2024-12-31", 2024, time.December, true},
		{"2024-13", 0, 0, false},
		{"March", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		y, m, err := ParseMonth(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("ParseMonth(%q) err = %v", tc.in, err)
		}
		if y != tc.year || m != tc.month {
			t.Fatalf("ParseMonth(%q) = %d-%d", tc.in, y, m)
		}
	}
}

func TestJSONMapKey(t *testing.T) {
	m := map[Key]int{20240305: 2}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"2024-03-05":2}` {
		t.Fatalf("unexpected json %s", b)
	}
	var back map[Key]int
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[20240305] != 2 {
		t.Fatalf("round trip lost value: %v", back)
	}
}

func TestSpan(t *testing.T) {
	loc := time.UTC
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, loc)
	end := time.Date(2024, 3, 4, 9, 0, 0, 0, loc)
	r := Span(start, end, loc)
	got := slices.Collect(r.All())
	want := []Key{20240302, 20240303, 20240304}
	if !slices.Equal(got, want) {
		t.Fatalf("span = %v, want %v", got, want)
	}
	// Restartable.
	if again := slices.Collect(r.All()); !slices.Equal(again, want) {
		t.Fatalf("second iteration = %v", again)
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestSpanDegenerate(t *testing.T) {
	loc := time.UTC
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, loc)
	r := Span(start, start.Add(-time.Hour), loc)
	if !r.Empty() || r.Len() != 0 {
		t.Fatalf("expected empty range, got %+v", r)
	}
	for k := range r.All() {
		t.Fatalf("unexpected key %s", k)
	}

	point := Span(start, start, loc)
	if point.Len() != 1 {
		t.Fatalf("point event should touch one day, got %d", point.Len())
	}
}

func TestSpanAcrossDST(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	// DST starts 2024-03-10 in New York; that day is 23 hours long.
	start := time.Date(2024, 3, 9, 12, 0, 0, 0, ny)
	end := time.Date(2024, 3, 11, 0, 30, 0, 0, ny)
	got := slices.Collect(Span(start, end, ny).All())
	want := []Key{20240309, 20240310, 20240311}
	if !slices.Equal(got, want) {
		t.Fatalf("span across DST = %v, want %v", got, want)
	}

	// Fall back: 2024-11-03 is 25 hours long.
	start = time.Date(2024, 11, 2, 23, 30, 0, 0, ny)
	end = time.Date(2024, 11, 4, 0, 0, 0, 0, ny)
	got = slices.Collect(Span(start, end, ny).All())
	want = []Key{20241102, 20241103, 20241104}
	if !slices.Equal(got, want) {
		t.Fatalf("span across fall-back = %v, want %v", got, want)
	}
}

func TestClip(t *testing.T) {
	r := Range{First: 20240225, Last: 20240310}
	c := r.Clip(20240301, 20240331)
	if c.First != 20240301 || c.Last != 20240310 {
		t.Fatalf("clip = %+v", c)
	}
	if !r.Clip(20240401, 20240430).Empty() {
		t.Fatalf("disjoint clip should be empty")
	}
	if !c.Contains(20240305) || c.Contains(20240311) {
		t.Fatalf("contains mismatch")
	}
}
