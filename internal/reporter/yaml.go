package reporter

import (
	"io"

	"github.com/ppiankov/dailyreport/internal/models"
	"gopkg.in/yaml.v3"
)

// YAMLReporter writes YAML documents
type YAMLReporter struct {
	writer io.Writer
}

func NewYAMLReporter(writer io.Writer) *YAMLReporter {
	return &YAMLReporter{writer: writer}
}

func (r *YAMLReporter) Reports(reports []models.Report) error {
	if reports == nil {
		reports = []models.Report{}
	}
	return r.write(reports)
}

func (r *YAMLReporter) Report(report models.Report) error {
	return r.write(report)
}

func (r *YAMLReporter) Statistics(stats models.Statistics) error {
	return r.write(stats)
}

func (r *YAMLReporter) WeeklySummary(summary WeeklySummary) error {
	return r.write(summary)
}

func (r *YAMLReporter) write(v interface{}) error {
	enc := yaml.NewEncoder(r.writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
