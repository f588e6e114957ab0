// Package source keeps the latest snapshot of events loaded from the
// configured ICS subscriptions.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"monthcal/internal/config"
	"monthcal/internal/daykey"
	"monthcal/internal/ics"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
)

// ErrAllSourcesFailed is returned when no configured source could be read.
var ErrAllSourcesFailed = errors.New("source: every ICS source failed")

// Snapshot is one refresh result. Events is never modified after the
// snapshot is published, so its identity can key a layout memo.
type Snapshot struct {
	Events      []model.Event
	Window      daykey.Range
	Truncated   []string
	Failures    int
	RefreshedAt time.Time
}

// Store loads events for a window and publishes them atomically.
type Store struct {
	sources []ics.Source
	fetcher *ics.Fetcher
	loc     *time.Location

	mu      sync.RWMutex
	current Snapshot
}

// NewStore builds a store over the ICS sources of cfg.
func NewStore(cfg *config.Config) *Store {
	sources := make([]ics.Source, 0, len(cfg.ICS))
	for _, c := range cfg.ICS {
		if c.URL == "" {
			continue
		}
		sources = append(sources, ics.Source{ID: c.SourceID(), URL: c.URL})
	}
	return &Store{
		sources: sources,
		fetcher: ics.NewFetcher(cfg.CacheDir),
		loc:     cfg.Location(),
	}
}

// Snapshot returns the latest published snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Events returns the events of the latest snapshot.
func (s *Store) Events() []model.Event {
	return s.Snapshot().Events
}

// Covers reports whether the latest snapshot was loaded for a window that
// includes w.
func (s *Store) Covers(w daykey.Range) bool {
	cur := s.Snapshot()
	return !cur.RefreshedAt.IsZero() && cur.Window.Contains(w.First) && cur.Window.Contains(w.Last)
}

// Refresh fetches, parses and expands every source for window and replaces
// the snapshot. A single failing source is logged and skipped; the
// snapshot is kept unchanged only when every source fails.
func (s *Store) Refresh(ctx context.Context, window daykey.Range) error {
	if window.Empty() {
		return fmt.Errorf("source: empty refresh window")
	}
	start := time.Now()

	results, errs := s.fetcher.FetchAll(ctx, s.sources)
	if len(s.sources) > 0 && len(results) == 0 {
		return fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}

	var parsed []ics.ParsedEvent
	failures := len(errs)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			failures++
			appLog.Error("source: parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ics.Expand(parsed, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      window.First.Time(s.loc),
		RangeEnd:        window.Last.AddDays(1).Time(s.loc).Add(-time.Nanosecond),
	})
	if err != nil {
		return fmt.Errorf("source: expand: %w", err)
	}

	snap := Snapshot{
		Events:      expanded.Events,
		Window:      window,
		Truncated:   expanded.TruncatedEvents,
		Failures:    failures,
		RefreshedAt: time.Now(),
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()

	appLog.Info("source: refreshed",
		"sources", len(s.sources),
		"failures", failures,
		"events", len(snap.Events),
		"window", window.First.String()+".."+window.Last.String(),
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Overlapping returns the events of the snapshot touching window.
func Overlapping(events []model.Event, window daykey.Range, loc *time.Location) []model.Event {
	out := make([]model.Event, 0)
	for _, e := range events {
		span := daykey.Span(e.Start, e.End, loc)
		if !span.Clip(window.First, window.Last).Empty() {
			out = append(out, e)
		}
	}
	return out
}
