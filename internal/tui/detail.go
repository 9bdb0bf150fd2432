package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/dailyreport/internal/models"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 8

// renderDetail produces the detail view for a selected report. Content
// beyond the panel is cut with a marker.
func renderDetail(report *models.Report, now time.Time, width int) string {
	if report == nil {
		return styleDetailPanel.Width(width).Render("No report selected")
	}

	var b strings.Builder

	title := report.Date
	if day, err := report.Day(); err == nil {
		title = dayStyle(day, now).Render(fmt.Sprintf("%s %s", report.Date, day.Weekday()))
	}
	b.WriteString(title)
	b.WriteString(styleMuted.Render(fmt.Sprintf("  created %s  updated %s", report.CreatedAt, report.UpdatedAt)))
	b.WriteString("\n")

	lines := strings.Split(report.Content, "\n")
	maxLines := detailHeight - 2
	if len(lines) > maxLines {
		hidden := len(lines) - maxLines + 1
		lines = append(lines[:maxLines-1], styleMuted.Render(fmt.Sprintf("... %d more line(s)", hidden)))
	}
	b.WriteString(strings.Join(lines, "\n"))

	return styleDetailPanel.Width(width).Render(b.String())
}
