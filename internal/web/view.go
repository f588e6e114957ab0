package web

import (
	"fmt"
	"time"

	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	"monthcal/internal/layout"
)

type monthView struct {
	Title          string
	ShowWeekNumber bool
	Weekdays       []string
	Weeks          []weekView
}

type weekView struct {
	Number int
	Cells  []cellView
}

type cellView struct {
	Empty   bool
	Key     string
	Day     int
	InMonth bool
	Today   bool
	Lines   []lineView
	More    string
}

// lineView is one slot row of a cell. A continued line is drawn as a bar
// without a title.
type lineView struct {
	Empty     bool
	Title     string
	Continued bool
	AllDay    bool
}

func buildMonthView(l *layout.Layout, moreLabel string, showWeekNumber bool, today daykey.Key) monthView {
	g := l.Grid()
	year, month := g.Target()
	visible := l.Options().MaxVisible

	v := monthView{
		Title:          fmt.Sprintf("%s %d", month, year),
		ShowWeekNumber: showWeekNumber,
	}
	for i := 0; i < grid.DaysPerWeek; i++ {
		v.Weekdays = append(v.Weekdays, time.Weekday((int(g.WeekStart())+i)%grid.DaysPerWeek).String()[:3])
	}

	for row, week := range g.Weeks() {
		wv := weekView{Number: g.WeekNumber(row)}
		for col, k := range week {
			if k.IsZero() {
				wv.Cells = append(wv.Cells, cellView{Empty: true})
				continue
			}
			_, _, day := k.Date()
			cv := cellView{
				Key:     k.String(),
				Day:     day,
				InMonth: g.InMonth(k),
				Today:   k == today,
				Lines:   make([]lineView, visible),
			}
			d, _ := l.Day(k)
			for slot, ev := range d.Visible() {
				if ev == nil {
					cv.Lines[slot] = lineView{Empty: true}
					continue
				}
				continued := false
				if col > 0 && !week[col-1].IsZero() {
					prev, _ := l.Day(week[col-1])
					continued = slot < len(prev.Slots) && prev.Slots[slot] == ev
				}
				cv.Lines[slot] = lineView{Title: ev.Title, Continued: continued, AllDay: ev.AllDay}
			}
			for i := len(d.Visible()); i < visible; i++ {
				cv.Lines[i] = lineView{Empty: true}
			}
			if d.More > 0 {
				cv.More = layout.FormatMore(moreLabel, d.More, d.Count)
			}
			wv.Cells = append(wv.Cells, cv)
		}
		v.Weeks = append(v.Weeks, wv)
	}
	return v
}
