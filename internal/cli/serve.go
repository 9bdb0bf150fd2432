package cli

import (
	"errors"
	"os"

	"github.com/ppiankov/dailyreport/internal/server"
	"github.com/ppiankov/dailyreport/internal/summary"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the report store over HTTP",
	Long: `Serve exposes reports, statistics, export/import and weekly summaries as a
JSON API under /api/v1. Weekly summaries answer 503 until Coze credentials are
configured. Logs are written to stderr as JSON lines.

Example:
  dailyreport serve
  dailyreport serve --addr 0.0.0.0:9000 --storage /var/lib/dailyreport`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"listen address (default from server.addr)")
}

func newServerLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", "dailyreport").Logger()
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srvLogger := newServerLogger()
	logger = srvLogger

	ctx, cancel := interruptContext(commandContext(cmd))
	defer cancel()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	// ctx is already cancelled by the time the final flush runs
	defer closeStore(st)

	deps := server.Dependencies{Store: st, Now: now}
	svc, err := summary.NewService(cfg.Summary(), summary.WithLogger(srvLogger))
	switch {
	case err == nil:
		deps.Summarizer = svc
	case errors.Is(err, summary.ErrMissingToken), errors.Is(err, summary.ErrMissingBotID):
		srvLogger.Warn().Err(err).Msg("weekly summaries disabled")
	default:
		return err
	}

	srvLogger.Info().Int("reports", st.Count()).Msg("store ready")

	webAPI := server.NewWebAPI(srvLogger, server.Config{
		Addr:         addr,
		Dependencies: deps,
	})
	return webAPI.Start(ctx)
}

// compile-time check that the summary service satisfies the HTTP dependency
var _ server.Summarizer = (*summary.Service)(nil)
