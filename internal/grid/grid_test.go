package grid

import (
	"testing"
	"time"

	"monthcal/internal/daykey"
)

func TestMonthRows(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     time.Month
		weekStart time.Weekday
		rows      int
		firstCell daykey.Key
	}{
		{"march 2024 sunday", 2024, time.March, time.Sunday, 6, 20240225},
		{"march 2024 monday", 2024, time.March, time.Monday, 5, 20240226},
		{"february 2026 sunday", 2026, time.February, time.Sunday, 4, 20260201},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Month(tt.year, tt.month, tt.weekStart, true)
			if g.Rows() != tt.rows {
				t.Fatalf("rows = %d, want %d", g.Rows(), tt.rows)
			}
			if got := g.Weeks()[0][0]; got != tt.firstCell {
				t.Fatalf("first cell = %s, want %s", got, tt.firstCell)
			}
			for _, row := range g.Weeks() {
				if row[0].Weekday() != tt.weekStart {
					t.Fatalf("row %v does not start on %v", row, tt.weekStart)
				}
			}
		})
	}
}

func TestMonthWithoutAdjacent(t *testing.T) {
	g := Month(2024, time.March, time.Sunday, false)
	weeks := g.Weeks()
	// March 1st 2024 is a Friday.
	for i := 0; i < 5; i++ {
		if !weeks[0][i].IsZero() {
			t.Fatalf("cell %d of first row should be empty, got %s", i, weeks[0][i])
		}
	}
	if weeks[0][5] != 20240301 {
		t.Fatalf("expected March 1st in column 5, got %s", weeks[0][5])
	}
	if g.Contains(20240229) {
		t.Fatalf("february day must not be part of the grid")
	}
	if g.First() != 20240301 || g.Last() != 20240331 {
		t.Fatalf("first/last = %s/%s", g.First(), g.Last())
	}
	w := g.Window()
	if w.First != 20240225 || w.Last != 20240406 {
		t.Fatalf("window = %+v", w)
	}
}

func TestMonthWithAdjacent(t *testing.T) {
	g := Month(2024, time.March, time.Sunday, true)
	if !g.Contains(20240225) || !g.Contains(20240406) {
		t.Fatalf("adjacent days should be present")
	}
	if g.InMonth(20240225) {
		t.Fatalf("february day reported in month")
	}
	if g.First() != 20240225 || g.Last() != 20240406 {
		t.Fatalf("first/last = %s/%s", g.First(), g.Last())
	}
	row, ok := g.Row(20240303)
	if !ok || row != 1 {
		t.Fatalf("row of 03-03 = %d,%v", row, ok)
	}
}

func TestMonthNormalizes(t *testing.T) {
	y, m := Month(2024, 13, time.Sunday, false).Target()
	if y != 2025 || m != time.January {
		t.Fatalf("target = %d-%v", y, m)
	}
}

func TestWeekNumber(t *testing.T) {
	g := Month(2024, time.March, time.Monday, false)
	if got := g.WeekNumber(0); got != 9 {
		t.Fatalf("week number of first row = %d, want 9", got)
	}
	if got := g.WeekNumber(g.Rows() - 1); got != 13 {
		t.Fatalf("week number of last row = %d, want 13", got)
	}
	if got := g.WeekNumber(99); got != 0 {
		t.Fatalf("out of range row = %d", got)
	}
}
