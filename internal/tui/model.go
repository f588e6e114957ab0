package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	"monthcal/internal/layout"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
	"monthcal/internal/render"
)

const refreshTimeout = 30 * time.Second

// Source is where the view gets its events. *source.Store implements it.
type Source interface {
	Covers(window daykey.Range) bool
	Refresh(ctx context.Context, window daykey.Range) error
	Events() []model.Event
}

// Config holds the display settings of the view.
type Config struct {
	Layout         layout.Options
	ShowAdjacent   bool
	ShowWeekNumber bool
	MoreLabel      string
	// Start is the initially selected day; zero means today.
	Start daykey.Key
	// Now defaults to time.Now.
	Now func() time.Time
}

// loadedMsg is sent when a refresh for window finishes.
type loadedMsg struct {
	window daykey.Range
	err    error
}

// Model is the bubbletea model of the month view.
type Model struct {
	src  Source
	memo layout.Memo
	cfg  Config
	keys Keymap
	help help.Model

	selected       daykey.Key
	showWeekNumber bool

	width, height int
	loading       bool
	err           error
	spinner       spinner.Model
}

// New returns a month view over src.
func New(src Source, cfg Config) *Model {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Layout.Location == nil {
		cfg.Layout.Location = time.Local
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		src:            src,
		cfg:            cfg,
		keys:           DefaultKeymap(),
		help:           help.New(),
		selected:       cfg.Start,
		showWeekNumber: cfg.ShowWeekNumber,
		spinner:        sp,
	}
	if m.selected.IsZero() {
		m.selected = m.today()
	}
	return m
}

// Selected returns the highlighted day.
func (m *Model) Selected() daykey.Key { return m.selected }

// ShowWeekNumber reports whether the week column is shown.
func (m *Model) ShowWeekNumber() bool { return m.showWeekNumber }

func (m *Model) today() daykey.Key {
	return daykey.Of(m.cfg.Now(), m.cfg.Layout.Location)
}

func (m *Model) grid() grid.Grid {
	return grid.ForDate(m.selected, m.cfg.Layout.WeekStart, m.cfg.ShowAdjacent)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.ensureLoaded(false)
}

// ensureLoaded starts a refresh when the current page is not covered by the
// source, or unconditionally when force is set.
func (m *Model) ensureLoaded(force bool) tea.Cmd {
	window := m.grid().Window()
	if m.loading || (!force && m.src.Covers(window)) {
		return nil
	}
	m.loading = true
	src := m.src
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		return loadedMsg{window: window, err: src.Refresh(ctx, window)}
	}
	return tea.Batch(m.spinner.Tick, load)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			appLog.Error("tui: refresh failed", msg.err, "window", msg.window.First.String()+".."+msg.window.Last.String())
			return m, nil
		}
		// The user may have paged away while loading.
		return m, m.ensureLoaded(false)
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.PrevDay):
		m.selected = m.selected.AddDays(-1)
	case key.Matches(msg, m.keys.NextDay):
		m.selected = m.selected.AddDays(1)
	case key.Matches(msg, m.keys.PrevWeek):
		m.selected = m.selected.AddDays(-grid.DaysPerWeek)
	case key.Matches(msg, m.keys.NextWeek):
		m.selected = m.selected.AddDays(grid.DaysPerWeek)
	case key.Matches(msg, m.keys.PrevMonth):
		m.selected = addMonths(m.selected, -1)
	case key.Matches(msg, m.keys.NextMonth):
		m.selected = addMonths(m.selected, 1)
	case key.Matches(msg, m.keys.Today):
		m.selected = m.today()
	case key.Matches(msg, m.keys.WeekNumbers):
		m.showWeekNumber = !m.showWeekNumber
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, m.ensureLoaded(true)
	default:
		return m, nil
	}
	return m, m.ensureLoaded(false)
}

// addMonths moves k by n months, clamping the day to the target month.
func addMonths(k daykey.Key, n int) daykey.Key {
	y, mo, d := k.Date()
	last := daykey.FromDate(y, mo+time.Month(n)+1, 0)
	_, _, lastDay := last.Date()
	return daykey.FromDate(y, mo+time.Month(n), min(d, lastDay))
}

// Layout returns the allocation of the page currently shown.
func (m *Model) Layout() *layout.Layout {
	return m.memo.Allocate(m.src.Events(), m.grid(), m.cfg.Layout)
}

// View implements tea.Model.
func (m *Model) View() string {
	l := m.Layout()
	opts := render.Options{
		MoreLabel:      m.cfg.MoreLabel,
		ShowWeekNumber: m.showWeekNumber,
		Today:          m.today(),
		Selected:       m.selected,
	}
	if m.width > 0 {
		opts.CellWidth = render.CellWidthFor(m.width, m.showWeekNumber)
	}

	var b strings.Builder
	b.WriteString(render.Month(l, opts))
	b.WriteString("\n")
	b.WriteString(m.dayView())
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " loading…\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	}
	b.WriteString(m.help.ShortHelpView(m.keys.help()))
	return b.String()
}

// dayView lists every event touching the selected day, including those
// hidden behind the overflow label.
func (m *Model) dayView() string {
	var b strings.Builder
	loc := m.cfg.Layout.Location
	b.WriteString(headingStyle.Render(m.selected.Time(loc).Format("Monday, January 2 2006")))
	b.WriteString("\n")

	n := 0
	for _, ev := range m.src.Events() {
		if !daykey.Span(ev.Start, ev.End, loc).Contains(m.selected) {
			continue
		}
		n++
		b.WriteString("  ")
		b.WriteString(timeStyle.Render(eventTime(ev, loc)))
		b.WriteString(" ")
		b.WriteString(ev.Title)
		if ev.Location != "" {
			b.WriteString(locationStyle.Render(" @ " + ev.Location))
		}
		b.WriteString("\n")
	}
	if n == 0 {
		b.WriteString(locationStyle.Render("  No events") + "\n")
	}
	return b.String()
}

func eventTime(ev model.Event, loc *time.Location) string {
	if ev.AllDay {
		return fmt.Sprintf("%-11s", "all day")
	}
	return ev.Start.In(loc).Format("15:04") + "-" + ev.End.In(loc).Format("15:04")
}

var (
	headingStyle  = lipgloss.NewStyle().Bold(true)
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#AD8CFF"})
	locationStyle = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
)
