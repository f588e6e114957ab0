package render

import "github.com/charmbracelet/lipgloss"

// Terminal-adaptive colors that work in both light and dark terminals.
var (
	subtle    = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#AD8CFF"}
	muted     = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#555555"}
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight)

	weekdayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(subtle)

	dayStyle = lipgloss.NewStyle()

	todayStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlight)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Reverse(true)

	adjacentStyle = lipgloss.NewStyle().
			Foreground(muted)

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1F5FBF", Dark: "#7FB2FF"})

	moreStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(subtle)

	weekNumberStyle = lipgloss.NewStyle().
			Foreground(muted)

	borderStyle = lipgloss.NewStyle().
			Foreground(muted)
)
