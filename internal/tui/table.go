package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/ppiankov/dailyreport/internal/reporter"
)

var tableColumns = []table.Column{
	{Title: "Date", Width: 10},
	{Title: "Day", Width: 4},
	{Title: "Updated", Width: 19},
	{Title: "Content", Width: 44},
}

// buildRows converts reports to table rows.
func buildRows(reports []models.Report) []table.Row {
	rows := make([]table.Row, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, table.Row{
			r.Date,
			weekdayLabel(r),
			r.UpdatedAt,
			reporter.Preview(r.Content, tableColumns[3].Width),
		})
	}
	return rows
}

func weekdayLabel(r models.Report) string {
	day, err := r.Day()
	if err != nil {
		return ""
	}
	return day.Weekday().String()[:3]
}

// newTable creates a bubbles table with standard columns and styling.
func newTable(rows []table.Row, height int) table.Model {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorAccent).
		Bold(false)
	t.SetStyles(s)

	return t
}
