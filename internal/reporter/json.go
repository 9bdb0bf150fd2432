package reporter

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/dailyreport/internal/models"
)

// JSONReporter generates machine-readable JSON output
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(writer io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		pretty: pretty,
	}
}

// Reports writes the reports as a JSON array, the same shape export produces
func (r *JSONReporter) Reports(reports []models.Report) error {
	if reports == nil {
		reports = []models.Report{}
	}
	return r.write(reports)
}

func (r *JSONReporter) Report(report models.Report) error {
	return r.write(report)
}

func (r *JSONReporter) Statistics(stats models.Statistics) error {
	return r.write(stats)
}

func (r *JSONReporter) WeeklySummary(summary WeeklySummary) error {
	return r.write(summary)
}

func (r *JSONReporter) write(v interface{}) error {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return err
	}

	_, err = r.writer.Write(data)
	if err != nil {
		return err
	}

	// Add trailing newline for terminal output
	_, err = r.writer.Write([]byte("\n"))
	return err
}
