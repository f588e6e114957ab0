// Package render draws a laid-out month as a terminal grid.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	"monthcal/internal/layout"
	"monthcal/internal/model"
)

// Cell describes where an event line is drawn.
type Cell struct {
	Key daykey.Key
	// Slot is the row of the line within the cell.
	Slot int
	// Continued is true when the same event occupies the same slot in the
	// previous column of the row, i.e. this line extends a bar.
	Continued bool
	// Continues is true when the bar goes on into the next column.
	Continues bool
}

// EventRenderer draws one event line. The result is truncated or padded to
// width by the caller.
type EventRenderer interface {
	RenderEvent(ev *model.Event, c Cell, width int) string
}

// EventRendererFunc adapts a function to EventRenderer.
type EventRendererFunc func(ev *model.Event, c Cell, width int) string

func (f EventRendererFunc) RenderEvent(ev *model.Event, c Cell, width int) string {
	return f(ev, c, width)
}

// DefaultEventRenderer prints the title where a bar starts and a line where
// it continues.
var DefaultEventRenderer EventRenderer = EventRendererFunc(func(ev *model.Event, c Cell, width int) string {
	if c.Continued {
		return strings.Repeat("─", width)
	}
	title := ev.Title
	if title == "" {
		title = "(untitled)"
	}
	if c.Continues {
		return runewidth.FillRight(runewidth.Truncate(title, width-1, "…"), width-1) + "─"
	}
	return title
})

const (
	defaultCellWidth = 14
	minCellWidth     = 5
	weekNumberWidth  = 4
)

// Options controls Month.
type Options struct {
	// MoreLabel is the overflow template; empty means layout.DefaultMoreLabel.
	MoreLabel string
	// CellWidth is the inner width of a day cell.
	CellWidth      int
	ShowWeekNumber bool
	// Today and Selected are highlighted when they are cells of the grid.
	Today    daykey.Key
	Selected daykey.Key
	// EventRenderer overrides DefaultEventRenderer.
	EventRenderer EventRenderer
}

// CellWidthFor fits seven cells (and the optional week column) into a
// terminal of the given width.
func CellWidthFor(termWidth int, showWeekNumber bool) int {
	avail := termWidth - 8
	if showWeekNumber {
		avail -= weekNumberWidth + 1
	}
	w := avail / grid.DaysPerWeek
	return max(minCellWidth, min(w, 24))
}

// Month renders the grid of l with up to MaxVisible event lines per cell
// and an overflow label.
func Month(l *layout.Layout, opts Options) string {
	g := l.Grid()
	width := opts.CellWidth
	if width <= 0 {
		width = defaultCellWidth
	}
	width = max(width, minCellWidth)
	renderer := opts.EventRenderer
	if renderer == nil {
		renderer = DefaultEventRenderer
	}
	visible := l.Options().MaxVisible

	var b strings.Builder
	year, month := g.Target()
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %d", month, year)))
	b.WriteString("\n")

	b.WriteString(header(g, width, opts.ShowWeekNumber))
	b.WriteString(separator(width, opts.ShowWeekNumber, "├", "┼", "┤"))

	weeks := g.Weeks()
	for row, week := range weeks {
		lines := make([]strings.Builder, visible+2)
		bar := borderStyle.Render("│")
		for i := range lines {
			lines[i].WriteString(bar)
			if opts.ShowWeekNumber {
				label := ""
				if i == 0 {
					label = fmt.Sprintf("W%02d", g.WeekNumber(row))
				}
				lines[i].WriteString(weekNumberStyle.Render(pad(label, weekNumberWidth)))
				lines[i].WriteString(bar)
			}
		}

		for col, k := range week {
			cell := renderCell(l, week, col, k, width, visible, renderer, opts)
			for i := range lines {
				lines[i].WriteString(cell[i])
				lines[i].WriteString(bar)
			}
		}
		for i := range lines {
			b.WriteString(lines[i].String())
			b.WriteString("\n")
		}
		if row < len(weeks)-1 {
			b.WriteString(separator(width, opts.ShowWeekNumber, "├", "┼", "┤"))
		}
	}
	b.WriteString(separator(width, opts.ShowWeekNumber, "└", "┴", "┘"))
	return b.String()
}

// renderCell returns visible+2 lines: the day number, one line per visible
// slot and the overflow label.
func renderCell(l *layout.Layout, week [grid.DaysPerWeek]daykey.Key, col int, k daykey.Key, width, visible int, renderer EventRenderer, opts Options) []string {
	out := make([]string, visible+2)
	blank := strings.Repeat(" ", width)
	for i := range out {
		out[i] = blank
	}
	if k.IsZero() {
		return out
	}

	_, _, day := k.Date()
	style := dayStyle
	switch {
	case k == opts.Selected:
		style = selectedStyle
	case k == opts.Today:
		style = todayStyle
	case !l.Grid().InMonth(k):
		style = adjacentStyle
	}
	out[0] = style.Render(pad(fmt.Sprintf("%2d", day), width))

	d, _ := l.Day(k)
	for slot, ev := range d.Visible() {
		if ev == nil {
			continue
		}
		c := Cell{
			Key:       k,
			Slot:      slot,
			Continued: sameSlot(l, week, col-1, slot, ev),
			Continues: sameSlot(l, week, col+1, slot, ev),
		}
		text := renderer.RenderEvent(ev, c, width)
		out[slot+1] = eventStyle.Render(pad(text, width))
	}
	if d.More > 0 {
		out[visible+1] = moreStyle.Render(pad(layout.FormatMore(opts.MoreLabel, d.More, d.Count), width))
	}
	return out
}

func sameSlot(l *layout.Layout, week [grid.DaysPerWeek]daykey.Key, col, slot int, ev *model.Event) bool {
	if col < 0 || col >= len(week) || week[col].IsZero() {
		return false
	}
	d, ok := l.Day(week[col])
	if !ok || slot >= len(d.Visible()) {
		return false
	}
	return d.Slots[slot] == ev
}

func header(g grid.Grid, width int, showWeekNumber bool) string {
	var b strings.Builder
	bar := borderStyle.Render("│")
	b.WriteString(bar)
	if showWeekNumber {
		b.WriteString(weekdayStyle.Render(pad("Wk", weekNumberWidth)))
		b.WriteString(bar)
	}
	for i := 0; i < grid.DaysPerWeek; i++ {
		wd := time.Weekday((int(g.WeekStart()) + i) % grid.DaysPerWeek)
		b.WriteString(weekdayStyle.Render(pad(" "+wd.String()[:3], width)))
		b.WriteString(bar)
	}
	b.WriteString("\n")
	return b.String()
}

func separator(width int, showWeekNumber bool, left, mid, right string) string {
	segs := make([]string, 0, grid.DaysPerWeek+1)
	if showWeekNumber {
		segs = append(segs, strings.Repeat("─", weekNumberWidth))
	}
	for i := 0; i < grid.DaysPerWeek; i++ {
		segs = append(segs, strings.Repeat("─", width))
	}
	return borderStyle.Render(left+strings.Join(segs, mid)+right) + "\n"
}

// pad truncates s to width display cells and fills the rest with spaces.
func pad(s string, width int) string {
	s = runewidth.Truncate(s, width, "…")
	return runewidth.FillRight(s, width)
}
