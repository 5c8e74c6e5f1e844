// =============================================================================
// Purchase Ledger - Category Aggregate Maintainer
// =============================================================================
//
// Every category sheet holds one aggregate row per item name:
//
//   | A    | B             | C            | D            | E            |
//   |------|---------------|--------------|--------------|--------------|
//   | ITEM | PURCHASE UNIT | PACKAGE UNIT | MOV AVER     | MAX          |
//   |      |               |              | PRICE/UNIT   | PRICE/UNIT   |
//   | Rice | sack          | g            | =SUM(...)    | =MAX(...)    |
//
// Reconcile keeps that row in step with the vendor sheets. The set of vendors
// selling an item is the index behind the per-vendor formula: it is read back
// from the existing formula, extended with the purchasing vendor and the
// formula text is regenerated from the set. Formulas are never patched in
// place.
//
// =============================================================================

package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
)

var (
	// ErrNoVendors is returned when no vendor sheet sells the item, so no
	// per-vendor formula can be built.
	ErrNoVendors = errors.New("no vendor sheet contains the item")

	// ErrNoCategory is returned for items without a category.
	ErrNoCategory = errors.New("item has no category")

	// ErrNoName is returned for items without a name.
	ErrNoName = errors.New("item has no name")
)

// Category sheet columns.
const (
	colItem         = "A"
	colPurchaseUnit = "B"
	colPackageUnit  = "C"
	colAverage      = "D"
	colMax          = "E"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how aggregate formulas are written.
type Settings struct {
	// Mode is config.FormulaPerVendor or config.FormulaNamedRange.
	Mode string

	// RangeName is the workbook defined name listing the vendor sheets.
	RangeName string

	// DataSheet is the hidden sheet backing RangeName.
	DataSheet string

	// Columns are the vendor sheet columns the formulas read.
	Columns Columns

	// IsVendorSheet separates vendor sheets from category, miscellaneous
	// and data sheets.
	IsVendorSheet func(sheet string) bool
}

// SettingsFor derives maintainer settings from the main configuration.
func SettingsFor(cfg *config.MainConfig) Settings {
	return Settings{
		Mode:          cfg.FormulaMode,
		RangeName:     cfg.VendorRange,
		DataSheet:     cfg.DataSheet,
		Columns:       Columns{Name: cfg.Columns.Name, Price: cfg.Columns.UnitPrice},
		IsVendorSheet: cfg.IsVendorSheet,
	}
}

func (s Settings) named() bool {
	return s.Mode == config.FormulaNamedRange
}

// =============================================================================
// MAINTAINER
// =============================================================================

// Maintainer reconciles category aggregate rows for one open workbook.
type Maintainer struct {
	wb       *workbook.Workbook
	settings Settings
	logger   *slog.Logger
	index    *StockIndex
}

// New creates a Maintainer. Without a stock index, vendor sheets are read on
// demand.
func New(wb *workbook.Workbook, settings Settings, logger *slog.Logger) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Columns == (Columns{}) {
		settings.Columns = DefaultColumns
	}
	if settings.IsVendorSheet == nil {
		settings.IsVendorSheet = func(string) bool { return true }
	}
	return &Maintainer{wb: wb, settings: settings, logger: logger}
}

// UseIndex makes the maintainer answer "which vendors sell this item" from a
// prebuilt index. Pass nil to go back to reading the sheets.
func (m *Maintainer) UseIndex(idx *StockIndex) {
	m.index = idx
}

// Observe tells the maintainer that a vendor row for the item was written.
func (m *Maintainer) Observe(vendor, name string) {
	if m.index != nil {
		m.index.Add(vendor, name)
	}
}

// Reconcile ensures the item's category sheet has exactly one aggregate row
// for the item, whose formulas cover the item's vendor.
//
// Calling it again for the same item name and vendor changes nothing.
//
// RETURNS:
//   - ErrNoName / ErrNoCategory for incomplete items.
//   - ErrNoVendors when a per-vendor formula would reference no sheet.
//   - Workbook errors. Nothing is written when the formula cannot be built.
func (m *Maintainer) Reconcile(item types.Item) error {
	item = item.Normalized()
	if item.Name == "" {
		return ErrNoName
	}
	if item.Category == "" {
		return fmt.Errorf("%q: %w", item.Name, ErrNoCategory)
	}
	if stored, ok := m.wb.SheetName(item.Vendor); ok {
		item.Vendor = stored
	}

	sheet, created, err := m.wb.EnsureSheet(item.Category, CategoryHeader)
	if err != nil {
		return err
	}
	if created {
		m.logger.Info("Created category sheet", "category", sheet)
	}

	row, found, err := m.findRow(sheet, item.Name)
	if err != nil {
		return err
	}

	formula := ""
	if found {
		if formula, err = m.wb.Formula(sheet, colAverage, row); err != nil {
			return err
		}
	}

	vendors, upToDate, err := m.plan(item, formula)
	if err != nil {
		return fmt.Errorf("failed to build formula for %q: %w", item.Name, err)
	}
	if upToDate {
		m.logger.Debug("Aggregate row up to date",
			"item", item.Name, "vendor", item.Vendor, "category", sheet)
		return nil
	}

	if !found {
		if row, err = m.nextRow(sheet); err != nil {
			return err
		}
	}
	if err := m.writeRow(sheet, row, item, vendors); err != nil {
		return err
	}

	m.logger.Debug("Aggregate row written",
		"item", item.Name, "category", sheet, "row", row, "vendors", len(vendors))
	return nil
}

// plan decides what the aggregate row's formulas must reference.
//
// RETURNS:
//   - The vendor set for a per-vendor formula (nil in named-range mode).
//   - Whether the existing formula already covers the item.
func (m *Maintainer) plan(item types.Item, formula string) ([]string, bool, error) {
	if m.settings.named() {
		if IsNamedFormula(formula, m.settings.RangeName) {
			return nil, true, nil
		}
		if formula != "" {
			m.logger.Info("Replacing per-vendor formula with named-range formula", "item", item.Name)
		}
		return nil, false, m.ensureVendorRange()
	}

	if vendors := ParseVendors(formula); len(vendors) > 0 {
		if item.Vendor == "" || slices.ContainsFunc(vendors, func(v string) bool {
			return strings.EqualFold(v, item.Vendor)
		}) {
			return nil, true, nil
		}
		return append(vendors, item.Vendor), false, nil
	}

	// Missing or unrecognized formula: rebuild from the vendor sheets.
	vendors, err := m.collectVendors(item)
	if err != nil {
		return nil, false, err
	}
	if len(vendors) == 0 {
		return nil, false, ErrNoVendors
	}
	return vendors, false, nil
}

// collectVendors scans the vendor sheets, in workbook order, for the item.
// The purchasing vendor always counts.
func (m *Maintainer) collectVendors(item types.Item) ([]string, error) {
	var sheets []string
	if m.index != nil {
		sheets = m.index.Vendors()
	} else {
		for _, sheet := range m.wb.Sheets() {
			if m.settings.IsVendorSheet(sheet) {
				sheets = append(sheets, sheet)
			}
		}
	}

	var vendors []string
	for _, sheet := range sheets {
		if strings.EqualFold(sheet, item.Vendor) {
			vendors = append(vendors, sheet)
			continue
		}
		ok, err := m.stocks(sheet, item.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			vendors = append(vendors, sheet)
		}
	}
	return vendors, nil
}

func (m *Maintainer) stocks(vendor, name string) (bool, error) {
	if m.index != nil {
		return m.index.Stocks(vendor, name), nil
	}
	names, err := m.wb.Column(vendor, m.settings.Columns.Name, firstDataRow)
	if err != nil {
		return false, fmt.Errorf("failed to scan vendor %q: %w", vendor, err)
	}
	return slices.ContainsFunc(names, func(n string) bool {
		return types.CleanName(n) == name
	}), nil
}

// findRow locates the aggregate row for name.
func (m *Maintainer) findRow(sheet, name string) (int, bool, error) {
	names, err := m.wb.Column(sheet, colItem, firstDataRow)
	if err != nil {
		return 0, false, err
	}
	for i, n := range names {
		if types.CleanName(n) == name {
			return firstDataRow + i, true, nil
		}
	}
	return 0, false, nil
}

func (m *Maintainer) nextRow(sheet string) (int, error) {
	last, err := m.wb.LastRow(sheet)
	if err != nil {
		return 0, err
	}
	return max(last+1, firstDataRow), nil
}

func (m *Maintainer) writeRow(sheet string, row int, item types.Item, vendors []string) error {
	cells := []struct {
		col   string
		value string
	}{
		{colItem, item.Name},
		{colPurchaseUnit, item.Unit},
		{colPackageUnit, item.ReferenceUnit()},
	}
	for _, cell := range cells {
		current, err := m.wb.Value(sheet, cell.col, row)
		if err != nil {
			return err
		}
		if strings.TrimSpace(current) != "" && cell.col != colItem {
			continue
		}
		if err := m.wb.SetValue(sheet, cell.col, row, cell.value); err != nil {
			return err
		}
	}

	cols := m.settings.Columns
	if m.settings.named() {
		if err := m.wb.SetFormula(sheet, colAverage, row, cols.NamedAverageFormula(row, m.settings.RangeName)); err != nil {
			return err
		}
		if err := m.wb.SetArrayFormula(sheet, colMax, row, cols.NamedMaxFormula(row, m.settings.RangeName)); err != nil {
			return err
		}
	} else {
		if err := m.wb.SetFormula(sheet, colAverage, row, cols.AverageFormula(row, vendors)); err != nil {
			return err
		}
		if err := m.wb.SetFormula(sheet, colMax, row, cols.MaxFormula(row, vendors)); err != nil {
			return err
		}
	}

	for _, col := range []string{colAverage, colMax} {
		if err := m.wb.SetFormat(sheet, col, row, workbook.FormatCurrency); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// VENDOR RANGE
// =============================================================================

// VendorSheets lists the workbook's vendor sheets in workbook order.
func (m *Maintainer) VendorSheets() []string {
	var vendors []string
	for _, sheet := range m.wb.Sheets() {
		if m.settings.IsVendorSheet(sheet) && !strings.EqualFold(sheet, m.settings.DataSheet) {
			vendors = append(vendors, sheet)
		}
	}
	return vendors
}

// RefreshVendorList rewrites the hidden data sheet with every vendor sheet
// name and points the vendor range at it.
func (m *Maintainer) RefreshVendorList() error {
	if m.settings.DataSheet == "" || m.settings.RangeName == "" {
		return nil
	}
	vendors := m.VendorSheets()
	if err := m.wb.WriteNameList(m.settings.DataSheet, m.settings.RangeName, vendors); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", m.settings.RangeName, err)
	}
	m.logger.Debug("Vendor list refreshed", "range", m.settings.RangeName, "vendors", len(vendors))
	return nil
}

func (m *Maintainer) ensureVendorRange() error {
	if _, ok := m.wb.DefinedName(m.settings.RangeName); ok {
		return nil
	}
	return m.RefreshVendorList()
}

// =============================================================================
// HEADER
// =============================================================================

// CategoryHeader writes the two header rows of a category sheet.
func CategoryHeader(wb *workbook.Workbook, sheet string) error {
	labels := []struct {
		col    string
		top    string
		bottom string
	}{
		{colItem, "ITEM", ""},
		{colPurchaseUnit, "PURCHASE UNIT", ""},
		{colPackageUnit, "PACKAGE UNIT", ""},
		{colAverage, "MOV AVER", "PRICE/UNIT"},
		{colMax, "MAX", "PRICE/UNIT"},
	}
	for _, label := range labels {
		if err := wb.SetValue(sheet, label.col, 1, label.top); err != nil {
			return err
		}
		if label.bottom == "" {
			if err := wb.Merge(sheet, workbook.Cell(label.col, 1), workbook.Cell(label.col, 2)); err != nil {
				return err
			}
		} else if err := wb.SetValue(sheet, label.col, 2, label.bottom); err != nil {
			return err
		}
		for row := 1; row <= 2; row++ {
			if err := wb.SetFormat(sheet, label.col, row, workbook.FormatBold); err != nil {
				return err
			}
		}
	}
	return nil
}
