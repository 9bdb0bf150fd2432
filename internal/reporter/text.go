package reporter

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/dailyreport/internal/models"
)

// previewWidth bounds the content column of report listings
const previewWidth = 60

// TextReporter generates human-readable text output
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
	}
}

// Reports prints one line per report with a content preview
func (r *TextReporter) Reports(reports []models.Report) error {
	if len(reports) == 0 {
		r.printf("No reports found.\n")
		return nil
	}

	r.printf("%-10s  %-19s  %s\n", "DATE", "UPDATED", "CONTENT")
	r.printf("--------------------------------------------------\n")
	for _, report := range reports {
		r.printf("%-10s  %-19s  %s\n", report.Date, report.UpdatedAt, Preview(report.Content, previewWidth))
	}
	r.printf("\n%d report(s)\n", len(reports))
	return nil
}

// Report prints a single report in full
func (r *TextReporter) Report(report models.Report) error {
	r.printf("Date:    %s\n", report.Date)
	r.printf("Created: %s\n", report.CreatedAt)
	r.printf("Updated: %s\n", report.UpdatedAt)
	r.printf("--------------------------------------------------\n")
	r.printf("%s\n", report.Content)
	return nil
}

// Statistics prints the statistics block
func (r *TextReporter) Statistics(stats models.Statistics) error {
	r.printHeader("Daily Report Statistics")
	r.printf("  Total Reports: %d\n", stats.TotalReports)
	r.printf("  This Month:    %d\n", stats.ThisMonthReports)
	r.printf("  This Week:     %d\n", stats.ThisWeekReports)
	r.printf("  First Report:  %s\n", orNone(stats.FirstReportDate))
	r.printf("  Last Report:   %s\n", orNone(stats.LastReportDate))
	return nil
}

// WeeklySummary prints a generated weekly report
func (r *TextReporter) WeeklySummary(summary WeeklySummary) error {
	r.printHeader("Weekly Report")
	r.printf("Period:    %s\n", summary.Range)
	r.printf("Reports:   %d\n", summary.ReportCount)
	if summary.GeneratedAt != "" {
		r.printf("Generated: %s\n", summary.GeneratedAt)
	}
	r.printf("\n%s\n", summary.Summary)
	return nil
}

// printHeader prints a boxed section title
func (r *TextReporter) printHeader(title string) {
	r.printf("%s\n", title)
	r.printf("%s\n", strings.Repeat("=", utf8.RuneCountInString(title)))
}

// printf is a helper to write formatted output
func (r *TextReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

// Preview flattens content to one line and cuts it to width runes.
func Preview(content string, width int) string {
	flat := strings.Join(strings.Fields(content), " ")
	if width <= 0 || utf8.RuneCountInString(flat) <= width {
		return flat
	}
	runes := []rune(flat)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func orNone(s *string) string {
	if s == nil {
		return "none"
	}
	return *s
}
