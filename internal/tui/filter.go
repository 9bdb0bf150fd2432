package tui

import (
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/dailyreport/internal/models"
)

// period restricts the listing to a calendar window around today.
type period int

const (
	periodAll period = iota
	periodWeek
	periodMonth
	periodLast30
)

var periodChoices = []period{periodAll, periodWeek, periodMonth, periodLast30}

// filterState holds current active filters.
type filterState struct {
	Period     period
	SearchText string
}

// sortOrder is the date ordering of the table.
type sortOrder int

const (
	sortNewestFirst sortOrder = iota
	sortOldestFirst
)

// applyFilters returns reports matching all active filters.
func applyFilters(reports []models.Report, f filterState, now time.Time) []models.Report {
	result := make([]models.Report, 0, len(reports))
	searchLower := strings.ToLower(f.SearchText)
	window, bounded := periodRange(f.Period, now)

	for _, r := range reports {
		if bounded && !window.Contains(r.Date) {
			continue
		}
		if searchLower != "" && !matchesSearch(r, searchLower) {
			continue
		}
		result = append(result, r)
	}
	return result
}

func matchesSearch(r models.Report, searchLower string) bool {
	return strings.Contains(strings.ToLower(r.Date), searchLower) ||
		strings.Contains(strings.ToLower(r.Content), searchLower)
}

// periodRange returns the date window for p; false means unbounded.
func periodRange(p period, now time.Time) (models.DateRange, bool) {
	switch p {
	case periodWeek:
		return models.WeekOf(now), true
	case periodMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return models.DateRange{
			Start: models.FormatDate(first),
			End:   models.FormatDate(first.AddDate(0, 1, -1)),
		}, true
	case periodLast30:
		return models.LastNDays(now, 30), true
	default:
		return models.DateRange{}, false
	}
}

// sortReports sorts a slice of reports in place by date.
func sortReports(reports []models.Report, order sortOrder) {
	sort.SliceStable(reports, func(i, j int) bool {
		if order == sortOldestFirst {
			return reports[i].Date < reports[j].Date
		}
		return reports[i].Date > reports[j].Date
	})
}

func periodName(p period) string {
	switch p {
	case periodWeek:
		return "this week"
	case periodMonth:
		return "this month"
	case periodLast30:
		return "last 30 days"
	default:
		return "all"
	}
}

func sortOrderName(o sortOrder) string {
	if o == sortOldestFirst {
		return "oldest first"
	}
	return "newest first"
}
