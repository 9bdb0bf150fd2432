package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/dailyreport/internal/models"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// activityWeeks is how many weeks the header sparkline covers.
const activityWeeks = 8

// renderHeader produces the header string from the store statistics.
func renderHeader(stats models.Statistics, activity []int, width int) string {
	var b strings.Builder

	// Line 1: title and totals
	b.WriteString(fmt.Sprintf("Daily Reports  Total: %d", stats.TotalReports))
	b.WriteString("\n")

	// Line 2: current period counts
	b.WriteString(fmt.Sprintf("This month: %d  This week: %d",
		stats.ThisMonthReports, stats.ThisWeekReports))
	b.WriteString("\n")

	// Line 3: covered range
	if stats.FirstReportDate != nil && stats.LastReportDate != nil {
		b.WriteString(styleMuted.Render(fmt.Sprintf("First: %s  Last: %s",
			*stats.FirstReportDate, *stats.LastReportDate)))
	}
	b.WriteString("\n")

	// Line 4: sparkline
	if len(activity) > 0 {
		b.WriteString("Weekly: ")
		b.WriteString(renderSparkline(activity))
	}

	return styleHeader.Width(width).Render(b.String())
}

// weeklyActivity counts reports per Monday-based week, oldest first, for the
// n weeks ending with the week containing now.
func weeklyActivity(reports []models.Report, now time.Time, n int) []int {
	counts := make([]int, n)
	current := models.WeekOf(now)
	weeks := make([]models.DateRange, n)
	for i := range weeks {
		start, _ := models.ParseDate(current.Start)
		weeks[n-1-i] = models.WeekOf(start.AddDate(0, 0, -7*i))
	}
	for _, r := range reports {
		for i, w := range weeks {
			if w.Contains(r.Date) {
				counts[i]++
				break
			}
		}
	}
	return counts
}

// renderSparkline converts an int slice to a unicode sparkline string.
func renderSparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		if max == min {
			b.WriteRune(bars[len(bars)/2])
		} else {
			normalized := float64(v-min) / float64(max-min)
			idx := int(normalized * float64(len(bars)-1))
			b.WriteRune(bars[idx])
		}
	}

	b.WriteString(fmt.Sprintf(" [%d→%d]", values[0], values[len(values)-1]))
	return b.String()
}
