// =============================================================================
// Purchase Ledger - Reinitialize Command
// =============================================================================
//
// This file defines the 'reinit' command, which rebuilds every category
// sheet from the vendor sheets.
//
// COMMAND USAGE:
//   ledger reinit [--yes] [--no-backup]
//
// Reinitialize clears all category rows, rewrites the vendor list, trims
// every item name and recreates one aggregate row per distinct item. On a
// full year's workbook this takes a while, so the command asks first.
//
// =============================================================================

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/purchase-ledger/internal/bulk"
	"github.com/ginjaninja78/purchase-ledger/internal/status"
)

var (
	reinitYes      bool
	reinitNoBackup bool
)

var reinitCmd = &cobra.Command{
	Use:   "reinit",
	Short: "Rebuild every category sheet from the vendor sheets",
	Long: `Clear every category sheet and rebuild it from the vendor sheets.

Each distinct item gets one row on its category sheet whose average and
maximum unit price formulas cover every vendor that stocks it. Items that
cannot be rebuilt are reported and written to the _LOG directory; the rest
of the workbook is still rebuilt.`,
	Args: cobra.NoArgs,
	RunE: runReinit,
}

func init() {
	reinitCmd.Flags().BoolVarP(&reinitYes, "yes", "y", false, "Do not ask for confirmation")
	reinitCmd.Flags().BoolVar(&reinitNoBackup, "no-backup", false, "Do not copy the workbook before writing")
	rootCmd.AddCommand(reinitCmd)
}

func runReinit(cmd *cobra.Command, _ []string) error {
	report := status.New(cmd.OutOrStdout())

	path, err := workbookPath()
	if err != nil {
		return report.Failed("reinitialize", err)
	}

	if !reinitYes {
		question := "This may take a long time and clears every category sheet. Continue?"
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
			report.Note("Cancelled")
			return nil
		}
	}

	report.Working()
	var bar *progressbar.ProgressBar
	result, err := bulk.ReinitializeFile(path, appConfig, bulk.Options{
		Logger:     logger,
		RunID:      runID,
		SkipBackup: reinitNoBackup,
		Progress:   sheetProgress(report, &bar, "Rebuilding categories"),
	})
	if err != nil {
		return report.Failed("reinitialize", err)
	}

	report.Note("%d categories, %d vendors, %d items", result.Categories, len(result.Vendors), result.Items)
	if n := len(result.Failures); n > 0 {
		report.Note("%d item(s) could not be rebuilt, see %s", n, result.FailureLog)
	}
	report.Done()
	return nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// confirm asks a yes/no question. Only "y" and "yes" count as yes.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// sheetProgress returns a bulk progress callback that draws a bar, created
// on the first call once the sheet count is known.
func sheetProgress(report *status.Reporter, bar **progressbar.ProgressBar, description string) bulk.ProgressFunc {
	return func(done, total int, sheet string) {
		if *bar == nil {
			*bar = report.Progress(total, description)
		}
		logger.Debug("Vendor sheet done", "sheet", sheet, "done", done, "total", total)
		_ = (*bar).Set(done)
	}
}
