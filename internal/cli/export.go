package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
	exportFrom   string
	exportTo     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reports as a JSON backup or CSV",
	Long: `Export writes every report as a 2-space indented JSON array that import
accepts back. The csv format is for spreadsheets and cannot be imported.

Supported formats:
  json   Backup format, sorted by date
  csv    date, content, createdAt, updatedAt rows

Example:
  dailyreport export -o daily-reports.json
  dailyreport export --format csv --from 2024-01-01 -o q1.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import reports from a JSON backup",
	Long: `Import reads a JSON array of reports (as written by export) and stores
each one by date, replacing reports for the same day. The whole file is checked
before anything is written: a single invalid element rejects the import.

Use - to read from stdin.

Example:
  dailyreport import daily-reports.json
  cat backup.json | dailyreport import -`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json",
		"output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"write output to file (default: stdout)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "",
		"csv only: first date to include")
	exportCmd.Flags().StringVar(&exportTo, "to", "",
		"csv only: last date to include")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "csv" {
		return &ValidationError{Message: fmt.Sprintf("unsupported format: %s (use json or csv)", exportFormat)}
	}
	if exportFormat == "json" && (exportFrom != "" || exportTo != "") {
		return &ValidationError{Message: "--from and --to apply to csv exports only"}
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	var writer io.Writer = cmd.OutOrStdout()
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		writer = f
	}

	logVerbose("Exporting %d reports", st.Count())

	switch exportFormat {
	case "csv":
		reports := st.List()
		if exportFrom != "" || exportTo != "" {
			rng, err := models.OpenDateRange(exportFrom, exportTo)
			if err != nil {
				return &ValidationError{Message: err.Error()}
			}
			reports = st.ListInRange(rng.Start, rng.End)
		}
		return writeCSV(writer, reports)
	default:
		data, err := st.Export()
		if err != nil {
			return fmt.Errorf("failed to export reports: %w", err)
		}
		if _, err := fmt.Fprintln(writer, data); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
	}

	if exportOutput != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d report(s) to %s\n", st.Count(), exportOutput)
	}
	return nil
}

func writeCSV(w io.Writer, reports []models.Report) error {
	cw := csv.NewWriter(w)

	header := []string{"date", "content", "createdAt", "updatedAt"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range reports {
		row := []string{r.Date, r.Content, r.CreatedAt, r.UpdatedAt}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func runImport(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	n, err := st.Import(ctx, string(data))
	if err != nil {
		return err
	}

	logVerbose("Store now holds %d reports", st.Count())
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d report(s)\n", n)
	return nil
}
