package cli

import (
	"fmt"

	"github.com/ppiankov/dailyreport/internal/config"
	"github.com/spf13/cobra"
)

var (
	initConfigPath  string
	initConfigForce bool
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a commented sample config file",
	Long: `init-config writes a sample dailyreport.yaml with every setting documented.
The file is created with mode 0600 because it may hold an API token.

Example:
  dailyreport init-config
  dailyreport init-config --path ./dailyreport.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runInitConfig,
}

func init() {
	initConfigCmd.Flags().StringVar(&initConfigPath, "path", "",
		"where to write the file (default: ~/.config/dailyreport/dailyreport.yaml)")
	initConfigCmd.Flags().BoolVar(&initConfigForce, "force", false,
		"overwrite an existing file")
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := initConfigPath
	if path == "" {
		path = config.ConfigPath()
	}

	if err := config.WriteSampleConfig(path, initConfigForce); err != nil {
		return err
	}

	logVerbose("Sample config written with mode 0600")
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample config to %s\n", path)
	return nil
}
