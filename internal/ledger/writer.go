// =============================================================================
// Purchase Ledger - Vendor Ledger Writer
// =============================================================================
//
// This module appends purchase lines to vendor sheets. Each vendor sheet has
// a fixed eleven column layout (letters configurable through config.Columns):
//
//   | A    | B    | C     | D   | E    | F    | G      | H    | I    | J      | K        |
//   |------|------|-------|-----|------|------|--------|------|------|--------|----------|
//   | DATE | ITEM | BRAND | QTY | UNIT | COST | TOTAL  | SIZE | UNIT | PRICE  | CATEGORY |
//   |      |      |       |     |      |      | =D*F   |      |      | =G/H   |          |
//
// Rows 1-2 are the header, data starts at row 3. Rows are never rewritten:
// every purchase appends a new line.
//
// =============================================================================

package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ginjaninja78/purchase-ledger/internal/aggregate"
	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
)

// FirstDataRow is the first vendor sheet row below the header.
const FirstDataRow = 3

// ErrNotVendorSheet is returned when a purchase names a category,
// miscellaneous or data sheet as its vendor.
var ErrNotVendorSheet = errors.New("not a vendor sheet")

// Settings configures the writer.
type Settings struct {
	// Columns maps each vendor field to its column letter.
	Columns config.Columns

	// IsVendorSheet reports whether a sheet may receive purchase lines.
	// Nil treats every sheet as a vendor.
	IsVendorSheet func(sheet string) bool
}

// SettingsFor derives writer settings from the main configuration.
func SettingsFor(cfg *config.MainConfig) Settings {
	return Settings{Columns: cfg.Columns, IsVendorSheet: cfg.IsVendorSheet}
}

// Writer appends purchases to the vendor sheets of one workbook.
type Writer struct {
	wb         *workbook.Workbook
	maintainer *aggregate.Maintainer
	settings   Settings
	logger     *slog.Logger
}

// NewWriter creates a Writer. The maintainer must work on the same workbook.
func NewWriter(wb *workbook.Workbook, maintainer *aggregate.Maintainer, settings Settings, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Columns == (config.Columns{}) {
		settings.Columns = config.DefaultColumns()
	}
	return &Writer{wb: wb, maintainer: maintainer, settings: settings, logger: logger}
}

// Append writes one purchase line to the vendor's sheet, reconciles the
// item's category aggregate row and saves the workbook.
//
// PARAMETERS:
//   - vendor: The vendor sheet name. The sheet is created on first use.
//   - item: The purchase. Its Vendor field is replaced by vendor.
//   - date: The purchase date.
//
// RETURNS:
//   - An error if the line, the aggregate row or the save fails. The
//     workbook is not saved in that case.
func (w *Writer) Append(vendor string, item types.Item, date time.Time) error {
	vendor = strings.TrimSpace(vendor)
	if vendor == "" {
		return fmt.Errorf("purchase of %q has no vendor", item.Name)
	}
	if w.settings.IsVendorSheet != nil && !w.settings.IsVendorSheet(vendor) {
		return fmt.Errorf("purchase of %q from %q: %w", item.Name, vendor, ErrNotVendorSheet)
	}
	item = item.Normalized()
	if item.Name == "" {
		return aggregate.ErrNoName
	}

	sheet, created, err := w.wb.EnsureSheet(vendor, w.Header)
	if err != nil {
		return err
	}
	item.Vendor = sheet

	row, err := w.insertionRow(sheet)
	if err != nil {
		return err
	}
	if err := w.writeLine(sheet, row, item, date); err != nil {
		return fmt.Errorf("failed to write %q to %s row %d: %w", item.Name, sheet, row, err)
	}
	w.logger.Info("Purchase appended", "vendor", sheet, "row", row, "item", item.Name)

	if created {
		w.logger.Info("Created vendor sheet", "vendor", sheet)
		if err := w.maintainer.RefreshVendorList(); err != nil {
			return err
		}
	}

	w.maintainer.Observe(sheet, item.Name)
	if err := w.maintainer.Reconcile(item); err != nil {
		return err
	}

	return w.wb.Save()
}

// insertionRow finds the row after the last purchase line. Trailing rows
// with an empty name cell (left over from manual deletions) are reused.
func (w *Writer) insertionRow(sheet string) (int, error) {
	last, err := w.wb.LastRow(sheet)
	if err != nil {
		return 0, err
	}
	row := last + 1
	for row > FirstDataRow {
		name, err := w.wb.Value(sheet, w.settings.Columns.Name, row-1)
		if err != nil {
			return 0, err
		}
		if strings.TrimSpace(name) != "" {
			break
		}
		row--
	}
	return max(row, FirstDataRow), nil
}

func (w *Writer) writeLine(sheet string, row int, item types.Item, date time.Time) error {
	cols := w.settings.Columns

	values := []struct {
		col   string
		value interface{}
	}{
		{cols.Date, date},
		{cols.Name, item.Name},
		{cols.Brand, item.Brand},
		{cols.Quantity, item.Quantity.InexactFloat64()},
		{cols.Unit, item.Unit},
		{cols.Cost, item.Cost.InexactFloat64()},
		{cols.PackageSize, item.PackageSize.InexactFloat64()},
		{cols.PackageUnit, item.PackageUnit},
		{cols.Category, item.Category},
	}
	for _, v := range values {
		if err := w.wb.SetValue(sheet, v.col, row, v.value); err != nil {
			return err
		}
	}

	total := workbook.Cell(cols.Quantity, row) + "*" + workbook.Cell(cols.Cost, row)
	if err := w.wb.SetFormula(sheet, cols.Total, row, total); err != nil {
		return err
	}
	unitPrice := workbook.Cell(cols.Total, row) + "/" + workbook.Cell(cols.PackageSize, row)
	if err := w.wb.SetFormula(sheet, cols.UnitPrice, row, unitPrice); err != nil {
		return err
	}

	formats := []struct {
		col    string
		format workbook.Format
	}{
		{cols.Date, workbook.FormatDate},
		{cols.Cost, workbook.FormatCurrency},
		{cols.Total, workbook.FormatCurrency},
		{cols.PackageSize, workbook.FormatThousands},
		{cols.UnitPrice, workbook.FormatCurrency},
	}
	for _, f := range formats {
		if err := w.wb.SetFormat(sheet, f.col, row, f.format); err != nil {
			return err
		}
	}
	return nil
}

// Header writes the two header rows of a vendor sheet.
func (w *Writer) Header(wb *workbook.Workbook, sheet string) error {
	return VendorHeader(w.settings.Columns)(wb, sheet)
}

// VendorHeader returns the header writer for vendor sheets with the given
// column layout.
func VendorHeader(cols config.Columns) workbook.HeaderFunc {
	labels := []struct {
		col  string
		top  string
		hint string
	}{
		{cols.Date, "DATE", ""},
		{cols.Name, "ITEM", ""},
		{cols.Brand, "BRAND", ""},
		{cols.Quantity, "QTY", ""},
		{cols.Unit, "UNIT", "purchase"},
		{cols.Cost, "COST", "per unit"},
		{cols.Total, "TOTAL", ""},
		{cols.PackageSize, "PACKAGE SIZE", "per unit"},
		{cols.PackageUnit, "PACKAGE UNIT", "content"},
		{cols.UnitPrice, "PRICE", "per content unit"},
		{cols.Category, "CATEGORY", ""},
	}
	return func(wb *workbook.Workbook, sheet string) error {
		for _, label := range labels {
			if err := wb.SetValue(sheet, label.col, 1, label.top); err != nil {
				return err
			}
			if label.hint != "" {
				if err := wb.SetValue(sheet, label.col, 2, label.hint); err != nil {
					return err
				}
			}
			for row := 1; row <= 2; row++ {
				if err := wb.SetFormat(sheet, label.col, row, workbook.FormatBold); err != nil {
					return err
				}
			}
		}
		return nil
	}
}
