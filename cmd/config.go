// =============================================================================
// Purchase Ledger - Config Command
// =============================================================================
//
// COMMAND USAGE:
//   ledger config init    - Write the default configuration to --config
//   ledger config check   - Load and validate --config, then print a summary
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/status"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write the default configuration file",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"skipConfig": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		report := status.New(cmd.OutOrStdout())
		report.Working()
		if err := config.Default().Write(cfgFile); err != nil {
			return report.Failed("writing config", err)
		}
		report.Note("Wrote %s", cfgFile)
		report.Done()
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Workbook:     %s\n", appConfig.Workbook)
		fmt.Fprintf(out, "Formula mode: %s\n", appConfig.FormulaMode)
		fmt.Fprintf(out, "Categories:   %s\n", strings.Join(appConfig.Categories.Names, ", "))
		fmt.Fprintf(out, "Misc sheets:  %s\n", strings.Join(appConfig.Categories.Misc, ", "))
		fmt.Fprintf(out, "Fallback:     %s (%s)\n", appConfig.Categories.Fallback, appConfig.Categories.DefaultUnit)
		status.New(out).Done()
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
