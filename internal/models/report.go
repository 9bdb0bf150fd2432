package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the ISO calendar date used as the report key.
	DateLayout = "2006-01-02"

	// TimestampLayout is the format of CreatedAt and UpdatedAt.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Report is one day's free-text entry keyed by date.
type Report struct {
	Date      string `json:"date" yaml:"date"`
	Content   string `json:"content" yaml:"content"`
	CreatedAt string `json:"createdAt" yaml:"createdAt"`
	UpdatedAt string `json:"updatedAt" yaml:"updatedAt"`
}

// Day parses the report date. Reports that passed validation always parse.
func (r Report) Day() (time.Time, error) {
	return ParseDate(r.Date)
}

// Statistics summarizes the stored reports relative to the current date.
type Statistics struct {
	TotalReports     int     `json:"totalReports" yaml:"totalReports"`
	ThisMonthReports int     `json:"thisMonthReports" yaml:"thisMonthReports"`
	ThisWeekReports  int     `json:"thisWeekReports" yaml:"thisWeekReports"`
	FirstReportDate  *string `json:"firstReportDate" yaml:"firstReportDate"`
	LastReportDate   *string `json:"lastReportDate" yaml:"lastReportDate"`
}

// DateRange is an inclusive range of ISO dates.
type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// NewDateRange validates both boundaries and returns the range.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date: %w", err)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return DateRange{Start: FormatDate(s), End: FormatDate(e)}, nil
}

// OpenDateRange is NewDateRange where an empty boundary is unbounded.
func OpenDateRange(start, end string) (DateRange, error) {
	if strings.TrimSpace(start) == "" {
		start = "0001-01-01"
	}
	if strings.TrimSpace(end) == "" {
		end = "9999-12-31"
	}
	return NewDateRange(start, end)
}

// Contains reports whether date falls within the range, boundaries included.
func (r DateRange) Contains(date string) bool {
	return date >= r.Start && date <= r.End
}

// String renders the range for prompts and logs.
func (r DateRange) String() string {
	return r.Start + " to " + r.End
}

// WeekOf returns the Monday..Sunday range containing day.
func WeekOf(day time.Time) DateRange {
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return DateRange{
		Start: FormatDate(monday),
		End:   FormatDate(monday.AddDate(0, 0, 6)),
	}
}

// LastNDays returns the range of n days ending on today.
func LastNDays(today time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	return DateRange{
		Start: FormatDate(today.AddDate(0, 0, -(n - 1))),
		End:   FormatDate(today),
	}
}

// ParseDate parses a strict YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must use YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatTimestamp renders t in the stored timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
