// Package grid builds the weeks matrix of one calendar page.
package grid

import (
	"time"

	"monthcal/internal/daykey"
)

// DaysPerWeek is the width of every grid row.
const DaysPerWeek = 7

// Grid is one month page: rows of seven day keys aligned to a week start.
// Cells outside the target month hold the zero key unless the grid was
// built with adjacent months.
type Grid struct {
	year         int
	month        time.Month
	weekStart    time.Weekday
	showAdjacent bool
	weeks        [][DaysPerWeek]daykey.Key
	index        map[daykey.Key]int
}

// Month returns the grid for the given month.
func Month(year int, month time.Month, weekStart time.Weekday, showAdjacent bool) Grid {
	first := daykey.FromDate(year, month, 1)
	// Re-read the normalized date so Month(2024, 13, ...) means January 2025.
	year, month, _ = first.Date()
	last := daykey.FromDate(year, month+1, 0)

	g := Grid{
		year:         year,
		month:        month,
		weekStart:    weekStart,
		showAdjacent: showAdjacent,
		index:        make(map[daykey.Key]int),
	}

	start := first.StartOfWeek(weekStart)
	end := last.StartOfWeek(weekStart).AddDays(DaysPerWeek - 1)
	for rowStart := start; rowStart <= end; rowStart = rowStart.AddDays(DaysPerWeek) {
		var row [DaysPerWeek]daykey.Key
		for i := range row {
			k := rowStart.AddDays(i)
			if !showAdjacent && (k < first || k > last) {
				continue
			}
			row[i] = k
			g.index[k] = len(g.weeks)
		}
		g.weeks = append(g.weeks, row)
	}
	return g
}

// ForDate returns the grid of the month containing k.
func ForDate(k daykey.Key, weekStart time.Weekday, showAdjacent bool) Grid {
	y, m, _ := k.Date()
	return Month(y, m, weekStart, showAdjacent)
}

// Target returns the month the grid was built for.
func (g Grid) Target() (int, time.Month) { return g.year, g.month }

// WeekStart returns the weekday of the first column.
func (g Grid) WeekStart() time.Weekday { return g.weekStart }

// ShowAdjacent reports whether cells outside the month carry dates.
func (g Grid) ShowAdjacent() bool { return g.showAdjacent }

// Weeks returns a copy of the rows.
func (g Grid) Weeks() [][DaysPerWeek]daykey.Key {
	out := make([][DaysPerWeek]daykey.Key, len(g.weeks))
	copy(out, g.weeks)
	return out
}

// Rows returns the number of week rows.
func (g Grid) Rows() int { return len(g.weeks) }

// Contains reports whether k is a (non-empty) cell of the grid.
func (g Grid) Contains(k daykey.Key) bool {
	_, ok := g.index[k]
	return ok
}

// Row returns the row index of k.
func (g Grid) Row(k daykey.Key) (int, bool) {
	r, ok := g.index[k]
	return r, ok
}

// InMonth reports whether k belongs to the target month.
func (g Grid) InMonth(k daykey.Key) bool {
	y, m, _ := k.Date()
	return y == g.year && m == g.month
}

// First returns the earliest non-empty cell.
func (g Grid) First() daykey.Key {
	if !g.showAdjacent {
		return daykey.FromDate(g.year, g.month, 1)
	}
	return g.weeks[0][0]
}

// Last returns the latest non-empty cell.
func (g Grid) Last() daykey.Key {
	if !g.showAdjacent {
		return daykey.FromDate(g.year, g.month+1, 0)
	}
	return g.weeks[len(g.weeks)-1][DaysPerWeek-1]
}

// Window returns the week-aligned span covering every row, padding
// included.
func (g Grid) Window() daykey.Range {
	first := daykey.FromDate(g.year, g.month, 1).StartOfWeek(g.weekStart)
	return daykey.Range{First: first, Last: first.AddDays(len(g.weeks)*DaysPerWeek - 1)}
}

// WeekNumber returns the ISO week number of a row, taken from the row's
// Thursday.
func (g Grid) WeekNumber(row int) int {
	if row < 0 || row >= len(g.weeks) {
		return 0
	}
	rowStart := g.Window().First.AddDays(row * DaysPerWeek)
	thursday := rowStart.AddDays((int(time.Thursday) - int(g.weekStart) + DaysPerWeek) % DaysPerWeek)
	_, week := thursday.Time(time.UTC).ISOWeek()
	return week
}
