package cli

import (
	"os"

	"github.com/ppiankov/dailyreport/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse reports in an interactive terminal UI",
	Long: `Browse opens a full-screen table of reports with a statistics header, an
activity sparkline and a detail panel for the selected day.

Keys:
  /      search date and content
  p      pick a period (this week, this month, last 30 days)
  s      toggle newest/oldest first
  c      copy the selected report to the clipboard
  esc    clear filters
  q      quit`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

// stdoutIsTerminal is replaced in tests
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if !stdoutIsTerminal() {
		return &ValidationError{Message: "browse needs an interactive terminal (use list instead)"}
	}

	ctx := commandContext(cmd)
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	logDebug("Browsing %d reports", st.Count())
	return tui.Run(st.List(), st.Statistics())
}
