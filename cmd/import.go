// =============================================================================
// Purchase Ledger - Import Command
// =============================================================================
//
// This file defines the 'import' command, which carries the items of an older
// workbook (for example last year's) into the current one.
//
// COMMAND USAGE:
//   ledger import <source.xlsx> [--no-backup]
//
// Items of the source's category sheets that the target does not list yet
// are staged as purchase rows on the staging sheet, then the target is
// reinitialized so they get category rows of their own.
//
// =============================================================================

package cmd

import (
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/purchase-ledger/internal/bulk"
	"github.com/ginjaninja78/purchase-ledger/internal/status"
)

var importNoBackup bool

var importCmd = &cobra.Command{
	Use:   "import <source workbook>",
	Short: "Import the items of another workbook",
	Long: `Import every item listed on the category sheets of another workbook that the
current workbook does not list yet. The items are staged on the staging sheet
with their last known unit price and the category sheets are rebuilt.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importNoBackup, "no-backup", false, "Do not copy the workbook before writing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	report := status.New(cmd.OutOrStdout())
	report.Working()

	path, err := workbookPath()
	if err != nil {
		return report.Failed("import", err)
	}

	var bar *progressbar.ProgressBar
	result, err := bulk.Import(args[0], path, appConfig, bulk.Options{
		Logger:     logger,
		RunID:      runID,
		SkipBackup: importNoBackup,
		Progress:   sheetProgress(report, &bar, "Rebuilding categories"),
	})
	if err != nil {
		return report.Failed("import", err)
	}

	report.Note("%d item(s) read from %s, %d staged, %d already present",
		result.Read, result.Source, len(result.Staged), result.Skipped)
	if n := len(result.Reinitialize.Failures); n > 0 {
		report.Note("%d item(s) could not be rebuilt, see %s", n, result.Reinitialize.FailureLog)
	}
	report.Done()
	return nil
}
