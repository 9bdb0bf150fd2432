package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorToday   = lipgloss.Color("#00FF00")
	colorWeekend = lipgloss.Color("#FF8800")
	colorMuted   = lipgloss.Color("#888888")
	colorAccent  = lipgloss.Color("#7B68EE")
	colorBorder  = lipgloss.Color("#444444")
)

// Panel styles
var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleSearchPrompt = lipgloss.NewStyle().
				Foreground(colorAccent).Bold(true)

	styleMuted = lipgloss.NewStyle().Foreground(colorMuted)
)

// dayStyle highlights today and weekend entries in the detail panel.
func dayStyle(day, today time.Time) lipgloss.Style {
	switch {
	case day.Year() == today.Year() && day.YearDay() == today.YearDay():
		return lipgloss.NewStyle().Foreground(colorToday).Bold(true)
	case day.Weekday() == time.Saturday || day.Weekday() == time.Sunday:
		return lipgloss.NewStyle().Foreground(colorWeekend).Bold(true)
	default:
		return lipgloss.NewStyle().Bold(true)
	}
}
