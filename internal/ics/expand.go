package ics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "monthcal/internal/log"
	"monthcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone every event is converted into.
	// Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart and RangeEnd bound the window; events touching it are kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps each recurring event. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// ExpandResult is the expanded event list plus the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

var ErrInvalidRange = errors.New("expand: RangeEnd is before RangeStart")

// Expand turns parsed VEVENTs into concrete events within the window:
// single events, RRULE recurrences with EXDATE and RECURRENCE-ID
// overrides. Every event ends on an inclusive instant, so an all-day
// event on March 5th runs from 00:00 to 23:59:59.999999999 in
// DisplayLocation. The result is sorted by start, then ID.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, ErrInvalidRange
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var uids []string
	for _, ev := range events {
		key := ev.Source.ID + "\x00" + ev.UID
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[key] = append(overridesByUID[key], ev)
			continue
		}
		if _, seen := baseByUID[key]; !seen {
			uids = append(uids, key)
		}
		baseByUID[key] = append(baseByUID[key], ev)
	}

	out := make([]model.Event, 0)
	for _, key := range uids {
		ov := overridesByUID[key]
		truncated := false
		for _, ev := range baseByUID[key] {
			occ, hitCap := expandEvent(ev, ov, cfg)
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			uid := baseByUID[key][0].UID
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	result.Events = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	e := makeEvent(ev, ev.Start, ev.End, cfg.DisplayLocation)
	if !e.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.Event{e}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	opt, err := rrule.StrToROption(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	opt.Dtstart = ev.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("expand: invalid RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(alignExDate(ex, ev))
	}

	// Occurrences that started before the window may still run into it.
	dur := ev.End.Sub(ev.Start)
	loc := ev.Start.Location()
	from := cfg.RangeStart.Add(-dur).In(loc)
	to := cfg.RangeEnd.In(loc)
	starts := set.Between(from, to, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.Event, 0, len(starts))
	for _, occStart := range starts {
		base := ev
		start, end := occStart, occStart.Add(dur)
		if ev.AllDay {
			end = start.AddDate(0, 0, max(1, daysBetween(ev.Start, ev.End)))
		}
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			base = o
			start, end = o.Start, o.End
		}
		e := makeEvent(base, start, end, cfg.DisplayLocation)
		if e.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, e)
		}
	}
	return out, hitCap
}

// alignExDate moves a DATE-only EXDATE onto the event's start time of day so
// that it matches the generated occurrence.
func alignExDate(ex time.Time, ev ParsedEvent) time.Time {
	ex = ex.In(ev.Start.Location())
	if ex.Hour() == 0 && ex.Minute() == 0 && ex.Second() == 0 && !ev.AllDay {
		y, m, d := ex.Date()
		return time.Date(y, m, d, ev.Start.Hour(), ev.Start.Minute(), ev.Start.Second(), 0, ev.Start.Location())
	}
	return ex
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 12, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 12, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts one instance into the display zone and turns the
// exclusive ICS end into an inclusive one.
func makeEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Event {
	if ev.AllDay {
		start, end = floatingDate(start, loc), floatingDate(end, loc)
		if !end.After(start) {
			end = start.AddDate(0, 0, 1)
		}
	} else {
		start, end = start.In(loc), end.In(loc)
	}
	if end.After(start) && isMidnight(end) {
		end = end.Add(-time.Nanosecond)
	}

	return model.Event{
		ID:          fmt.Sprintf("%s/%s@%s", ev.Source.ID, ev.UID, start.Format(time.RFC3339)),
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

// floatingDate keeps the civil date of t and places it at midnight in loc;
// all-day dates do not move between zones.
func floatingDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
