package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/dailyreport/internal/config"
	"github.com/ppiankov/dailyreport/internal/storage"
	"github.com/ppiankov/dailyreport/internal/store"
	"github.com/ppiankov/dailyreport/internal/summary"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	ExitOK           = 0 // Success
	ExitInvalidInput = 2 // Bad arguments, report validation or rejected import
	ExitRuntimeError = 3 // I/O, storage, network or other runtime error
)

var (
	// Global config instance
	cfg *config.Config

	// CLI logger, rebuilt from flags before every command
	logger = newLogger(os.Stderr, false, false)

	// now is replaced in tests
	now = time.Now

	// buildVersion is set by SetVersion from main
	buildVersion = "dev"

	// Global flags
	configFile string
	storageDir string
	verbose    bool
	debug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dailyreport",
	Short: "dailyreport - Daily work log with AI weekly summaries",
	Long: `dailyreport keeps one free-text report per calendar day and turns a week
of them into a structured weekly summary through the Coze chat API.

Quick start:
  dailyreport init-config
  dailyreport write today "Reviewed the storage PR"
  dailyreport list --last 7
  dailyreport weekly

Other commands:
  dailyreport browse
  dailyreport export -o backup.json
  dailyreport import backup.json
  dailyreport serve --addr 127.0.0.1:8080
  dailyreport doctor`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		// Load configuration
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags if provided
		if verbose {
			cfg.Verbose = true
		}
		if debug {
			cfg.Debug = true
		}
		if storageDir != "" {
			cfg.StorageDir = storageDir
		}

		logger = newLogger(os.Stderr, cfg.Verbose, cfg.Debug)

		if err := cfg.Validate(); err != nil {
			return &ValidationError{Message: fmt.Sprintf("invalid configuration: %v", err)}
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		os.Exit(HandleError(err))
	}
}

// SetVersion records the build version shown by the version command.
func SetVersion(v string) {
	buildVersion = v
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./dailyreport.yaml or ~/.config/dailyreport/dailyreport.yaml)")
	rootCmd.PersistentFlags().StringVar(&storageDir, "storage", "",
		"storage directory for the file backend (overrides storage_dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"debug mode (very verbose)")

	// Add subcommands
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dailyreport %s\n", buildVersion)
		fmt.Fprintln(out, "Daily work log with AI weekly summaries")
	},
}

// HandleError determines the appropriate exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var validationErr *ValidationError
	var reportErr *store.ValidationError
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &reportErr),
		errors.Is(err, store.ErrInvalidImport),
		errors.Is(err, summary.ErrMissingToken),
		errors.Is(err, summary.ErrMissingBotID):
		return ExitInvalidInput
	default:
		return ExitRuntimeError
	}
}

// ValidationError represents invalid command-line input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newLogger builds the human-oriented stderr logger: warnings by default,
// info with verbose, everything with debug.
func newLogger(w io.Writer, verbose, debug bool) zerolog.Logger {
	level := zerolog.WarnLevel
	switch {
	case debug:
		level = zerolog.DebugLevel
	case verbose:
		level = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
		FormatLevel: func(i interface{}) string {
			return "[" + strings.ToUpper(fmt.Sprint(i)) + "]"
		},
	}
	return zerolog.New(out).Level(level)
}

// logVerbose prints a message if verbose mode is enabled
func logVerbose(format string, args ...interface{}) {
	logger.Info().Msgf(format, args...)
}

// logDebug prints a message if debug mode is enabled
func logDebug(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// logError prints an error message
func logError(format string, args ...interface{}) {
	logger.Error().Msgf(format, args...)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the configured backend and restores the report collection.
// The caller closes the store.
func openStore(ctx context.Context) (*store.Store, error) {
	bc, err := cfg.Backend()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage: %w", err)
	}

	kv, err := storage.Open(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage %s: %w", storage.Describe(bc), err)
	}
	logDebug("Using storage %s", storage.Describe(bc))

	return store.Open(ctx, store.NewKVPersister(kv),
		store.WithLogger(logger),
		store.WithClock(now),
	), nil
}

// closeStore releases st, logging failures.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		logError("Failed to close storage: %v", err)
	}
}

// outputFormat returns the --format flag value, or the configured default.
func outputFormat(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Format
}
