package model

import "time"

// Event is a single concrete calendar entry as laid out on the month grid,
// after recurrence expansion and timezone normalization.
type Event struct {
	// ID uniquely identifies this instance (source, UID and start).
	ID string

	SourceID string // calendar source ID
	UID      string // iCalendar UID

	Title       string
	Description string
	Location    string

	AllDay bool

	// Start and End are inclusive instants: the event covers every
	// calendar day from Start's day through End's day.
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Valid reports whether End is not before Start.
func (e Event) Valid() bool {
	return !e.End.Before(e.Start)
}

// Overlaps reports whether e touches the closed interval [from, to].
func (e Event) Overlaps(from, to time.Time) bool {
	return !e.End.Before(from) && !to.Before(e.Start)
}
