package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/dailyreport/internal/api"
	"github.com/ppiankov/dailyreport/internal/models"
	"github.com/ppiankov/dailyreport/internal/reporter"
	"github.com/ppiankov/dailyreport/internal/summary"
	"github.com/spf13/cobra"
)

const pingTimeout = 30 * time.Second

var (
	weeklyFrom     string
	weeklyTo       string
	weeklyWeek     string
	weeklyNoStream bool
	weeklyOutput   string
	weeklyFormat   string
)

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Generate a weekly summary with the Coze chat API",
	Long: `Weekly sends the reports of a week (Monday to Sunday) to the configured
Coze bot and prints the generated summary as it streams in.

Without flags the current week is used. --week picks the week containing a
date; --from and --to give an explicit range of up to 366 days.

Requires coze.token and coze.bot_id (or COZE_API_TOKEN and COZE_BOT_ID).

Example:
  dailyreport weekly
  dailyreport weekly --week 2024-03-05
  dailyreport weekly --from 2024-03-01 --to 2024-03-15 --no-stream -o summary.md
  dailyreport weekly --format json`,
	Args: cobra.NoArgs,
	RunE: runWeekly,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the Coze chat API answers with the configured credentials",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func init() {
	weeklyCmd.Flags().StringVar(&weeklyFrom, "from", "",
		"first date of the range (YYYY-MM-DD)")
	weeklyCmd.Flags().StringVar(&weeklyTo, "to", "",
		"last date of the range (YYYY-MM-DD)")
	weeklyCmd.Flags().StringVar(&weeklyWeek, "week", "",
		"any date in the wanted week, or today/yesterday")
	weeklyCmd.Flags().BoolVar(&weeklyNoStream, "no-stream", false,
		"print the summary only once it is complete")
	weeklyCmd.Flags().StringVarP(&weeklyOutput, "output", "o", "",
		"write the summary to file (default: stdout)")
	weeklyCmd.Flags().StringVar(&weeklyFormat, "format", "",
		"output format: text, json, or yaml (default from config)")
}

// weeklyRange resolves --from/--to/--week into the range to summarize.
func weeklyRange() (models.DateRange, error) {
	if weeklyFrom != "" || weeklyTo != "" {
		if weeklyWeek != "" {
			return models.DateRange{}, &ValidationError{Message: "--week cannot be combined with --from or --to"}
		}
		rng, err := api.ValidateRange(weeklyFrom, weeklyTo)
		if err != nil {
			return models.DateRange{}, &ValidationError{Message: err.Error()}
		}
		return rng, nil
	}

	if weeklyWeek != "" {
		date, err := parseDateArg(weeklyWeek)
		if err != nil {
			return models.DateRange{}, err
		}
		day, _ := models.ParseDate(date)
		return models.WeekOf(day), nil
	}

	return models.WeekOf(now()), nil
}

func newSummaryService() (*summary.Service, error) {
	svc, err := summary.NewService(cfg.Summary(), summary.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%w (set coze.token and coze.bot_id, or COZE_API_TOKEN and COZE_BOT_ID)", err)
	}
	return svc, nil
}

// interruptContext cancels on Ctrl-C so a hanging generation can be abandoned.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runWeekly(cmd *cobra.Command, args []string) error {
	rng, err := weeklyRange()
	if err != nil {
		return err
	}

	format := outputFormat(weeklyFormat)
	if _, err := reporter.New(format, io.Discard); err != nil {
		return &ValidationError{Message: err.Error()}
	}

	svc, err := newSummaryService()
	if err != nil {
		return err
	}

	baseCtx := commandContext(cmd)
	st, err := openStore(baseCtx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx, cancel := interruptContext(baseCtx)
	defer cancel()

	reports := st.ListInRange(rng.Start, rng.End)
	if len(reports) == 0 {
		logger.Warn().Str("range", rng.String()).Msg("No reports in range, the summary will say so")
	}
	logVerbose("Summarizing %d report(s) from %s", len(reports), rng)

	out := cmd.OutOrStdout()
	var file *os.File
	if weeklyOutput != "" {
		file, err = os.Create(weeklyOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	stream := format == reporter.FormatText && !weeklyNoStream && file == nil
	if stream {
		fmt.Fprintf(out, "Weekly report %s (%d report(s))\n\n", rng, len(reports))
		if _, err := svc.GenerateWeeklySummaryTo(ctx, reports, rng, out); err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprintln(out)
		return nil
	}

	text, err := svc.GenerateWeeklySummary(ctx, reports, rng)
	if err != nil {
		return err
	}

	rep, _ := reporter.New(format, out)
	if err := rep.WeeklySummary(reporter.WeeklySummary{
		Range:       rng,
		ReportCount: len(reports),
		GeneratedAt: models.FormatTimestamp(now()),
		Summary:     text,
	}); err != nil {
		return err
	}

	if file != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Weekly summary written to %s\n", weeklyOutput)
	}
	return nil
}

func runPing(cmd *cobra.Command, args []string) error {
	svc, err := newSummaryService()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(commandContext(cmd), pingTimeout)
	defer cancel()

	logVerbose("Sending test message to %s (bot %s)", svc.BaseURL(), svc.BotID())
	if err := svc.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Connection OK: %s (bot %s)\n", svc.BaseURL(), svc.BotID())
	return nil
}
