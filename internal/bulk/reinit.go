// =============================================================================
// Purchase Ledger - Bulk Operations
// =============================================================================
//
// Reinitialize rebuilds every category sheet from vendor history:
//
//   1. Create missing category sheets, clear all rows below the header
//   2. Rewrite the hidden vendor list (DATA sheet / Vendors range)
//   3. Trim every item name on every vendor sheet
//   4. Walk vendor sheets in workbook order, rows top-down; classify and
//      reconcile each distinct item name once
//
// Vendor rows are never touched beyond name trimming. Failures are collected
// per item and the run continues.
//
// Import merges the aggregate rows of an older workbook by staging them as
// rows of one more vendor sheet, then reinitializes.
//
// =============================================================================

package bulk

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ginjaninja78/purchase-ledger/internal/aggregate"
	"github.com/ginjaninja78/purchase-ledger/internal/classifier"
	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
	"github.com/ginjaninja78/purchase-ledger/pkg/utils"
)

// firstDataRow is the first row below the two header rows.
const firstDataRow = 3

// failureLogPrefix names the per-run failure log in the _LOG directory.
const failureLogPrefix = "reinit_errors"

// =============================================================================
// OPTIONS AND REPORTS
// =============================================================================

// ProgressFunc is called after each vendor sheet is processed.
type ProgressFunc func(done, total int, sheet string)

// Options configures a bulk run.
type Options struct {
	Logger *slog.Logger

	// RunID tags the failure log.
	RunID string

	// Progress receives per-sheet progress. May be nil.
	Progress ProgressFunc

	// SkipBackup disables the backup copy made by the file-level
	// operations.
	SkipBackup bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Failure is one item that could not be reconciled.
type Failure struct {
	Sheet string
	Row   int
	Name  string
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s row %d (%s): %v", f.Sheet, f.Row, f.Name, f.Err)
}

// Report summarizes a reinitialize run.
type Report struct {
	// Categories is the number of category sheets rebuilt.
	Categories int

	// Vendors lists the vendor sheets scanned, in order.
	Vendors []string

	// Cleared is the number of aggregate rows removed before the rebuild.
	Cleared int

	// Trimmed is the number of vendor name cells that were trimmed.
	Trimmed int

	// Items is the number of distinct items reconciled.
	Items int

	// Failures lists the items that could not be reconciled.
	Failures []Failure

	// Backup and FailureLog are set by ReinitializeFile.
	Backup     string
	FailureLog string
}

// =============================================================================
// REINITIALIZE
// =============================================================================

// Reinitialize clears and rebuilds every category sheet of an open workbook.
// The workbook is not saved.
//
// RETURNS:
//   - The run report, including per-item failures.
//   - An error only for workbook-level failures (a category sheet that
//     cannot be cleared, a vendor sheet that cannot be read).
func Reinitialize(wb *workbook.Workbook, cfg *config.MainConfig, opts Options) (Report, error) {
	logger := opts.logger()
	var report Report

	for _, category := range cfg.Categories.Names {
		sheet, created, err := wb.EnsureSheet(category, aggregate.CategoryHeader)
		if err != nil {
			return report, err
		}
		if created {
			logger.Info("Created category sheet", "category", sheet)
		}
		removed, err := wb.ClearRows(sheet, firstDataRow)
		if err != nil {
			return report, err
		}
		report.Cleared += removed
		report.Categories++
	}

	maintainer := aggregate.New(wb, aggregate.SettingsFor(cfg), logger)
	if err := maintainer.RefreshVendorList(); err != nil {
		return report, err
	}
	report.Vendors = maintainer.VendorSheets()

	for _, vendor := range report.Vendors {
		trimmed, err := trimNames(wb, vendor, cfg.Columns.Name)
		if err != nil {
			return report, err
		}
		report.Trimmed += trimmed
	}

	idx, err := aggregate.BuildStockIndex(wb, report.Vendors, cfg.Columns.Name)
	if err != nil {
		return report, err
	}
	maintainer.UseIndex(idx)

	cls := classifier.New(cfg.Categories, cfg.Columns, logger)
	done := newDoneSet()

	for i, vendor := range report.Vendors {
		items, failures, err := reconcileVendor(wb, vendor, cfg.Columns.Name, cls, maintainer, done, logger)
		if err != nil {
			return report, err
		}
		report.Items += items
		report.Failures = append(report.Failures, failures...)
		if opts.Progress != nil {
			opts.Progress(i+1, len(report.Vendors), vendor)
		}
	}

	logger.Info("Reinitialize finished",
		"categories", report.Categories,
		"vendors", len(report.Vendors),
		"items", report.Items,
		"failures", len(report.Failures))
	return report, nil
}

// newDoneSet returns the set of item names already handled in a run,
// seeded with placeholder values that must never be reconciled.
func newDoneSet() map[string]bool {
	return map[string]bool{"": true, "None": true}
}

// reconcileVendor reconciles each not yet handled item of one vendor sheet.
func reconcileVendor(
	wb *workbook.Workbook,
	vendor, nameCol string,
	cls *classifier.Classifier,
	maintainer *aggregate.Maintainer,
	done map[string]bool,
	logger *slog.Logger,
) (int, []Failure, error) {
	names, err := wb.Column(vendor, nameCol, firstDataRow)
	if err != nil {
		return 0, nil, err
	}

	items := 0
	var failures []Failure
	for i, raw := range names {
		name := types.CleanName(raw)
		if done[name] {
			continue
		}
		row := firstDataRow + i

		item, err := cls.Classify(wb, vendor, row)
		if errors.Is(err, classifier.ErrBlankName) {
			continue
		}
		done[name] = true
		if err == nil {
			err = maintainer.Reconcile(item)
		}
		if err != nil {
			logger.Error("Failed to reconcile item", "vendor", vendor, "row", row, "item", name, "error", err)
			failures = append(failures, Failure{Sheet: vendor, Row: row, Name: name, Err: err})
			continue
		}
		items++
	}
	return items, failures, nil
}

// trimNames strips surrounding whitespace from every item name cell.
func trimNames(wb *workbook.Workbook, vendor, nameCol string) (int, error) {
	names, err := wb.Column(vendor, nameCol, firstDataRow)
	if err != nil {
		return 0, err
	}
	trimmed := 0
	for i, raw := range names {
		clean := types.CleanName(raw)
		if clean == raw {
			continue
		}
		if err := wb.SetValue(vendor, nameCol, firstDataRow+i, clean); err != nil {
			return trimmed, err
		}
		trimmed++
	}
	return trimmed, nil
}

// ReinitializeFile backs up the workbook at path, reinitializes it and saves
// it. Per-item failures are written to the _LOG directory next to the
// workbook.
func ReinitializeFile(path string, cfg *config.MainConfig, opts Options) (Report, error) {
	logger := opts.logger()
	fm := utils.NewFileManager(path, cfg.BackupExtension)

	backup := ""
	if !opts.SkipBackup {
		var err error
		if backup, err = fm.Backup(); err != nil {
			return Report{}, err
		}
		logger.Info("Saved backup", "path", backup)
	}

	wb, err := workbook.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer wb.Close()

	report, err := Reinitialize(wb, cfg, opts)
	report.Backup = backup
	if err != nil {
		return report, err
	}
	if err := wb.Save(); err != nil {
		return report, err
	}

	report.FailureLog, err = writeFailureLog(fm, opts.RunID, report.Failures)
	if err != nil {
		logger.Warn("Could not write failure log", "error", err)
	}
	return report, nil
}

func writeFailureLog(fm *utils.FileManager, runID string, failures []Failure) (string, error) {
	entries := make([]utils.ErrorLogEntry, len(failures))
	now := time.Now()
	for i, f := range failures {
		entries[i] = utils.ErrorLogEntry{
			Timestamp:    now,
			Sheet:        f.Sheet,
			RowNumber:    f.Row,
			ItemName:     f.Name,
			ErrorType:    "reconcile",
			ErrorMessage: f.Err.Error(),
		}
	}
	return fm.WriteErrorLog(failureLogPrefix, runID, entries)
}
