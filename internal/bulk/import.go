package bulk

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/ledger"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
	"github.com/ginjaninja78/purchase-ledger/pkg/utils"
)

// =============================================================================
// IMPORT
// =============================================================================

// Record is one aggregate row read from a source workbook.
type Record struct {
	Category     string
	Name         string
	PurchaseUnit string
	PackageUnit  string
	Price        decimal.Decimal
}

// ImportReport summarizes an import.
type ImportReport struct {
	// Batch identifies this import in the log.
	Batch string

	// Source is the source workbook name used as the staged rows' brand.
	Source string

	// Read is the number of distinct items found in the source.
	Read int

	// Staged lists the items appended to the staging sheet.
	Staged []Record

	// Skipped is the number of source items the target already had.
	Skipped int

	// Backup is the target backup copy.
	Backup string

	// Reinitialize is the report of the rebuild that followed.
	Reinitialize Report
}

// Import merges the category aggregates of the workbook at sourcePath into
// the workbook at targetPath.
//
// PROCESS:
//  1. Read every configured category sheet of the source (name-keyed,
//     first occurrence wins)
//  2. Drop items any target category sheet already lists
//  3. Append the rest to the staging sheet, one vendor-style row each
//  4. Reinitialize the target and save it
//
// Running it twice stages the same rows twice. Reinitialize handles each
// name once, so the aggregates are unaffected.
func Import(sourcePath, targetPath string, cfg *config.MainConfig, opts Options) (ImportReport, error) {
	logger := opts.logger()
	report := ImportReport{Batch: uuid.NewString()}
	logger = logger.With("batch", report.Batch)
	opts.Logger = logger

	src, err := workbook.Open(sourcePath)
	if err != nil {
		return report, err
	}
	records, err := ReadRecords(src, cfg.Categories.Names)
	report.Source = src.Name()
	src.Close()
	if err != nil {
		return report, err
	}
	report.Read = len(records)
	logger.Info("Read source aggregates", "source", sourcePath, "items", len(records))

	fm := utils.NewFileManager(targetPath, cfg.BackupExtension)
	if !opts.SkipBackup {
		if report.Backup, err = fm.Backup(); err != nil {
			return report, err
		}
		logger.Info("Saved backup", "path", report.Backup)
	}

	tgt, err := workbook.Open(targetPath)
	if err != nil {
		return report, err
	}
	defer tgt.Close()

	known, err := aggregateNames(tgt, cfg.Categories.Names)
	if err != nil {
		return report, err
	}

	var missing []Record
	for _, record := range records {
		if known[record.Name] {
			report.Skipped++
			continue
		}
		missing = append(missing, record)
	}

	if err := stage(tgt, cfg, report.Source, missing, time.Now()); err != nil {
		return report, err
	}
	report.Staged = missing
	logger.Info("Staged source items", "sheet", cfg.StagingSheet,
		"staged", len(missing), "skipped", report.Skipped)

	// The backup above already covers the rebuild.
	reinitOpts := opts
	reinitOpts.SkipBackup = true
	if report.Reinitialize, err = Reinitialize(tgt, cfg, reinitOpts); err != nil {
		return report, err
	}
	if err := tgt.Save(); err != nil {
		return report, err
	}

	if report.Reinitialize.FailureLog, err = writeFailureLog(fm, opts.RunID, report.Reinitialize.Failures); err != nil {
		logger.Warn("Could not write failure log", "error", err)
	}
	return report, nil
}

// ReadRecords reads the aggregate rows of the given category sheets. Items
// are keyed by name; the first occurrence wins. Missing sheets are skipped.
func ReadRecords(wb *workbook.Workbook, categories []string) ([]Record, error) {
	var records []Record
	seen := newDoneSet()

	for _, category := range categories {
		sheet, ok := wb.SheetName(category)
		if !ok {
			continue
		}
		names, err := wb.Column(sheet, "A", firstDataRow)
		if err != nil {
			return nil, err
		}
		for i, raw := range names {
			name := types.CleanName(raw)
			if seen[name] {
				continue
			}
			seen[name] = true

			row := firstDataRow + i
			record := Record{Category: category, Name: name}
			if record.PurchaseUnit, err = wb.Value(sheet, "B", row); err != nil {
				return nil, err
			}
			if record.PackageUnit, err = wb.Value(sheet, "C", row); err != nil {
				return nil, err
			}
			price, err := wb.Value(sheet, "D", row)
			if err != nil {
				return nil, err
			}
			if record.Price, err = decimal.NewFromString(strings.TrimSpace(price)); err != nil {
				// Formulas never calculated by a spreadsheet program have no value.
				record.Price = decimal.Zero
			}
			record.PurchaseUnit = strings.TrimSpace(record.PurchaseUnit)
			record.PackageUnit = strings.TrimSpace(record.PackageUnit)
			records = append(records, record)
		}
	}
	return records, nil
}

// aggregateNames returns every item name listed on the category sheets.
func aggregateNames(wb *workbook.Workbook, categories []string) (map[string]bool, error) {
	names := make(map[string]bool)
	for _, category := range categories {
		sheet, ok := wb.SheetName(category)
		if !ok {
			continue
		}
		column, err := wb.Column(sheet, "A", firstDataRow)
		if err != nil {
			return nil, err
		}
		for _, name := range column {
			names[types.CleanName(name)] = true
		}
	}
	return names, nil
}

// stage appends records to the staging sheet as vendor rows: the name, the
// units, the source price as the unit price and the category. The brand
// column carries the source workbook name.
func stage(wb *workbook.Workbook, cfg *config.MainConfig, source string, records []Record, date time.Time) error {
	sheet, _, err := wb.EnsureSheet(cfg.StagingSheet, ledger.VendorHeader(cfg.Columns))
	if err != nil {
		return err
	}
	last, err := wb.LastRow(sheet)
	if err != nil {
		return err
	}
	row := max(last+1, firstDataRow)

	cols := cfg.Columns
	for _, record := range records {
		cells := []struct {
			col   string
			value interface{}
		}{
			{cols.Date, date},
			{cols.Name, record.Name},
			{cols.Brand, source},
			{cols.Unit, record.PurchaseUnit},
			{cols.PackageUnit, record.PackageUnit},
			{cols.UnitPrice, record.Price.InexactFloat64()},
			{cols.Category, record.Category},
		}
		for _, cell := range cells {
			if err := wb.SetValue(sheet, cell.col, row, cell.value); err != nil {
				return fmt.Errorf("failed to stage %q: %w", record.Name, err)
			}
		}
		if err := wb.SetFormat(sheet, cols.Date, row, workbook.FormatDate); err != nil {
			return err
		}
		if err := wb.SetFormat(sheet, cols.UnitPrice, row, workbook.FormatCurrency); err != nil {
			return err
		}
		row++
	}
	return nil
}
