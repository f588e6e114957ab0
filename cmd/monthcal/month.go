package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"

	"monthcal/internal/daykey"
)

// parseMonth resolves the -month flag. Empty means the month of now;
// "YYYY-MM" and "YYYY-MM-DD" are taken literally and anything else is read
// as a natural-language date relative to now ("next month", "in 3 weeks").
func parseMonth(s string, now time.Time) (int, time.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, _ := now.Date()
		return y, m, nil
	}
	if y, m, err := daykey.ParseMonth(s); err == nil {
		return y, m, nil
	}
	t, err := naturaldate.Parse(s, now, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return 0, 0, fmt.Errorf("parse month %q: %w", s, err)
	}
	y, m, _ := t.Date()
	return y, m, nil
}
