package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/dailyreport/internal/api"
	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/ppiankov/dailyreport/internal/reporter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	writeFile string

	showFormat string

	listFrom   string
	listTo     string
	listLast   int
	listFormat string

	clearYes bool

	statsFormat string
)

var writeCmd = &cobra.Command{
	Use:   "write <date|today|yesterday> [content...]",
	Short: "Write the report for a day",
	Long: `Write creates or replaces the report for a day. Content is taken from the
remaining arguments, from --file, or from stdin. An existing report keeps its
creation time.

Example:
  dailyreport write today "Fixed the import bug, reviewed two PRs"
  dailyreport write 2024-03-05 --file notes.md
  git log --since=yesterday --oneline | dailyreport write yesterday`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWrite,
}

var showCmd = &cobra.Command{
	Use:   "show <date|today|yesterday>",
	Short: "Show the report for a day",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <date|today|yesterday>",
	Aliases: []string{"rm"},
	Short:   "Delete the report for a day",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reports, oldest first",
	Long: `List prints stored reports sorted by date. Ranges are inclusive; either
boundary may be omitted.

Example:
  dailyreport list
  dailyreport list --from 2024-03-01 --to 2024-03-31
  dailyreport list --last 7 --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every report",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show report statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	writeCmd.Flags().StringVarP(&writeFile, "file", "f", "",
		"read content from file (- for stdin)")

	showCmd.Flags().StringVar(&showFormat, "format", "",
		"output format: text, json, or yaml (default from config)")

	listCmd.Flags().StringVar(&listFrom, "from", "",
		"first date to include (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "",
		"last date to include (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&listLast, "last", 0,
		"only the last N days, today included")
	listCmd.Flags().StringVar(&listFormat, "format", "",
		"output format: text, json, or yaml (default from config)")

	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false,
		"do not ask for confirmation")

	statsCmd.Flags().StringVar(&statsFormat, "format", "",
		"output format: text, json, or yaml (default from config)")
}

// parseDateArg resolves a date argument, accepting today and yesterday.
func parseDateArg(arg string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "today":
		return models.FormatDate(now()), nil
	case "yesterday":
		return models.FormatDate(now().AddDate(0, 0, -1)), nil
	}
	if err := api.ValidateDate(arg); err != nil {
		return "", &ValidationError{Message: err.Error()}
	}
	return strings.TrimSpace(arg), nil
}

func readContent(cmd *cobra.Command, args []string) (string, error) {
	if writeFile != "" && len(args) > 0 {
		return "", &ValidationError{Message: "give content either as arguments or with --file, not both"}
	}
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if writeFile != "" && writeFile != "-" {
		data, err := os.ReadFile(writeFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", writeFile, err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	date, err := parseDateArg(args[0])
	if err != nil {
		return err
	}
	content, err := readContent(cmd, args[1:])
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	existed := st.Has(date)
	report, err := st.Save(ctx, date, content)
	if err != nil {
		return err
	}

	verb := "Saved"
	if existed {
		verb = "Updated"
	}
	logVerbose("%s report for %s (%d chars)", verb, report.Date, len(report.Content))
	fmt.Fprintf(cmd.OutOrStdout(), "%s report for %s\n", verb, report.Date)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	date, err := parseDateArg(args[0])
	if err != nil {
		return err
	}

	rep, err := reporter.New(outputFormat(showFormat), cmd.OutOrStdout())
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, ok := st.Get(date)
	if !ok {
		return fmt.Errorf("no report for %s", date)
	}
	return rep.Report(report)
}

func runDelete(cmd *cobra.Command, args []string) error {
	date, err := parseDateArg(args[0])
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	if !st.Delete(ctx, date) {
		return fmt.Errorf("no report for %s", date)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted report for %s\n", date)
	return nil
}

// listRange resolves --from/--to/--last. The bool is false when every report is wanted.
func listRange() (models.DateRange, bool, error) {
	if listLast > 0 {
		if listFrom != "" || listTo != "" {
			return models.DateRange{}, false, &ValidationError{Message: "--last cannot be combined with --from or --to"}
		}
		return models.LastNDays(now(), listLast), true, nil
	}
	if listLast < 0 {
		return models.DateRange{}, false, &ValidationError{Message: "--last must be positive"}
	}
	if listFrom == "" && listTo == "" {
		return models.DateRange{}, false, nil
	}
	rng, err := models.OpenDateRange(listFrom, listTo)
	if err != nil {
		return models.DateRange{}, false, &ValidationError{Message: err.Error()}
	}
	return rng, true, nil
}

func runList(cmd *cobra.Command, args []string) error {
	rng, bounded, err := listRange()
	if err != nil {
		return err
	}

	rep, err := reporter.New(outputFormat(listFormat), cmd.OutOrStdout())
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	reports := st.List()
	if bounded {
		logDebug("Listing reports from %s", rng)
		reports = st.ListInRange(rng.Start, rng.End)
	}
	return rep.Reports(reports)
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	count := st.Count()
	if count == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reports to delete.")
		return nil
	}

	if !clearYes {
		ok, err := confirm(cmd, fmt.Sprintf("Delete all %d report(s)? [y/N] ", count))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	st.Clear(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d report(s)\n", count)
	return nil
}

// confirm asks a yes/no question on an interactive stdin. Without a terminal
// it refuses, so scripts must pass --yes.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	if f, ok := cmd.InOrStdin().(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false, &ValidationError{Message: "refusing to delete without confirmation (use --yes)"}
	}

	fmt.Fprint(cmd.OutOrStdout(), question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func runStats(cmd *cobra.Command, args []string) error {
	rep, err := reporter.New(outputFormat(statsFormat), cmd.OutOrStdout())
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	return rep.Statistics(st.Statistics())
}
