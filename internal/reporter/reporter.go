package reporter

import (
	"fmt"
	"io"

	"github.com/ppiankov/dailyreport/internal/models"
)

// Output formats accepted by New
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Reporter renders store data for the terminal or for other tools.
type Reporter interface {
	Reports(reports []models.Report) error
	Report(report models.Report) error
	Statistics(stats models.Statistics) error
	WeeklySummary(summary WeeklySummary) error
}

// WeeklySummary is a generated weekly report together with its inputs.
type WeeklySummary struct {
	Range       models.DateRange `json:"range" yaml:"range"`
	ReportCount int              `json:"reportCount" yaml:"reportCount"`
	GeneratedAt string           `json:"generatedAt" yaml:"generatedAt"`
	Summary     string           `json:"summary" yaml:"summary"`
}

// New returns the reporter for format.
func New(format string, w io.Writer) (Reporter, error) {
	switch format {
	case FormatText, "":
		return NewTextReporter(w), nil
	case FormatJSON:
		return NewJSONReporter(w, true), nil
	case FormatYAML:
		return NewYAMLReporter(w), nil
	}
	return nil, fmt.Errorf("unknown format %q (must be text, json, or yaml)", format)
}
