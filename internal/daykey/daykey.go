// Package daykey provides the canonical per-calendar-day identifier used to
// bucket events, plus civil-date arithmetic that is immune to DST shifts.
package daykey

import (
	"errors"
	"fmt"
	"time"
)

// Key identifies a calendar day as yyyymmdd (e.g. 20240305).
// The zero Key means "no day" and is used for grid padding.
type Key int32

// Layout is the textual form used by String and Parse.
const Layout = "2006-01-02"

var ErrInvalidKey = errors.New("daykey: invalid key")

// Of returns the key of the calendar day containing t in loc.
// A nil loc means time.Local.
func Of(t time.Time, loc *time.Location) Key {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return FromDate(y, m, d)
}

// FromDate builds a key from a civil date. Out-of-range month/day values are
// normalized the way time.Date normalizes them.
func FromDate(year int, month time.Month, day int) Key {
	// Noon UTC keeps normalization away from any zone transition.
	y, m, d := time.Date(year, month, day, 12, 0, 0, 0, time.UTC).Date()
	return Key(y*10000 + int(m)*100 + d)
}

// Parse parses "YYYY-MM-DD".
func Parse(s string) (Key, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, fmt.Errorf("daykey: parse %q: %w", s, err)
	}
	return FromDate(t.Date()), nil
}

// ParseMonth parses "YYYY-MM" or "YYYY-MM-DD" and returns the month it
// names.
func ParseMonth(s string) (int, time.Month, error) {
	for _, layout := range []string{"2006-01", Layout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), t.Month(), nil
		}
	}
	return 0, 0, fmt.Errorf("daykey: parse month %q: want YYYY-MM", s)
}

// IsZero reports whether k is the "no day" key.
func (k Key) IsZero() bool { return k == 0 }

// Date returns the civil date of k.
func (k Key) Date() (year int, month time.Month, day int) {
	v := int(k)
	return v / 10000, time.Month(v / 100 % 100), v % 100
}

// Valid reports whether k encodes an existing calendar date.
func (k Key) Valid() bool {
	if k <= 0 {
		return false
	}
	y, m, d := k.Date()
	return FromDate(y, m, d) == k
}

// Time returns midnight of k in loc (nil means time.Local).
func (k Key) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := k.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (k Key) civil() time.Time {
	y, m, d := k.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

// AddDays moves k by n calendar days.
func (k Key) AddDays(n int) Key {
	y, m, d := k.Date()
	return FromDate(y, m, d+n)
}

// DaysUntil returns the number of calendar days from k to other
// (negative when other is earlier).
func (k Key) DaysUntil(other Key) int {
	return int(other.civil().Sub(k.civil()).Hours() / 24)
}

// Weekday returns the day of the week of k.
func (k Key) Weekday() time.Weekday {
	return k.civil().Weekday()
}

// StartOfWeek returns the first day of the week containing k, for weeks
// beginning on weekStart.
func (k Key) StartOfWeek(weekStart time.Weekday) Key {
	offset := (int(k.Weekday()) - int(weekStart) + 7) % 7
	return k.AddDays(-offset)
}

// String formats k as "YYYY-MM-DD"; the zero key formats as "".
func (k Key) String() string {
	if k.IsZero() {
		return ""
	}
	y, m, d := k.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// MarshalText implements encoding.TextMarshaler so keys can be JSON map keys.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = 0
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
