// Package tui is the interactive terminal month view.
package tui

import "github.com/charmbracelet/bubbles/key"

// Keymap holds the bindings of the month view.
type Keymap struct {
	PrevDay     key.Binding
	NextDay     key.Binding
	PrevWeek    key.Binding
	NextWeek    key.Binding
	PrevMonth   key.Binding
	NextMonth   key.Binding
	Today       key.Binding
	WeekNumbers key.Binding
	Refresh     key.Binding
	Quit        key.Binding
}

// DefaultKeymap returns Vim-style bindings.
func DefaultKeymap() Keymap {
	return Keymap{
		PrevDay:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h", "prev day")),
		NextDay:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l", "next day")),
		PrevWeek:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "prev week")),
		NextWeek:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "next week")),
		PrevMonth:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev month")),
		NextMonth:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next month")),
		Today:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		WeekNumbers: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "week numbers")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k Keymap) help() []key.Binding {
	return []key.Binding{k.PrevDay, k.NextDay, k.PrevWeek, k.NextWeek, k.PrevMonth, k.NextMonth, k.Today, k.WeekNumbers, k.Refresh, k.Quit}
}
