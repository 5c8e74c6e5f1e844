// =============================================================================
// Purchase Ledger - Workbook Accessor
// =============================================================================
//
// This module wraps the excelize spreadsheet library with the handful of
// operations the ledger needs:
//   - Opening, creating and saving the purchasing workbook
//   - Sheet lookup-or-create with a caller supplied header writer
//   - Cell reads (raw values and formulas) and writes addressed by
//     column letter and 1-based row number
//   - Row deletion below a header
//   - Display formats (date, currency, thousands separator, bold)
//   - The hidden vendor list sheet and its workbook-scoped defined name
//
// Sheet names compare case-insensitively, the same way the spreadsheet
// application treats them.
//
// =============================================================================

package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrSheetMissing is returned when an operation names a sheet that does not
// exist in the workbook.
var ErrSheetMissing = errors.New("sheet does not exist")

// =============================================================================
// DISPLAY FORMATS
// =============================================================================

// Format is a cell display format.
type Format int

const (
	// FormatDate displays a date as 30-Mar-19.
	FormatDate Format = iota
	// FormatCurrency displays Rupiah amounts.
	FormatCurrency
	// FormatThousands displays an integer with a thousands separator.
	FormatThousands
	// FormatBold renders the cell text in bold.
	FormatBold
)

const (
	dateFormat      = "dd-mmm-yy"
	thousandsFormat = "#,##0"
	currencyFormat  = `_("Rp"* #,##0_);_("Rp"* (#,##0);_("Rp"* "-"_);_(@_)`
)

func (f Format) style() *excelize.Style {
	switch f {
	case FormatDate:
		return &excelize.Style{CustomNumFmt: strPtr(dateFormat)}
	case FormatCurrency:
		return &excelize.Style{CustomNumFmt: strPtr(currencyFormat)}
	case FormatThousands:
		return &excelize.Style{CustomNumFmt: strPtr(thousandsFormat)}
	default:
		return &excelize.Style{Font: &excelize.Font{Bold: true}}
	}
}

func strPtr(s string) *string { return &s }

// =============================================================================
// WORKBOOK STRUCTURE
// =============================================================================

// Workbook is an open purchasing workbook.
type Workbook struct {
	file *excelize.File
	path string

	// placeholder is the default sheet of a freshly created file. It is
	// dropped as soon as the first real sheet exists.
	placeholder string

	// styles caches style IDs per display format.
	styles map[Format]int
}

// HeaderFunc writes the header rows of a newly created sheet.
type HeaderFunc func(w *Workbook, sheet string) error

// New creates an empty in-memory workbook. Save requires a path, so use
// SaveAs for workbooks created this way.
func New() *Workbook {
	f := excelize.NewFile()
	return &Workbook{
		file:        f,
		placeholder: f.GetSheetName(0),
		styles:      make(map[Format]int),
	}
}

// Open opens an existing workbook file.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//
// RETURNS:
//   - The open workbook. The caller must Close it.
//   - An error if the file is missing, locked or not a spreadsheet.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Workbook{file: f, path: path, styles: make(map[Format]int)}, nil
}

// OpenOrCreate opens the workbook at path, or starts a new one that will be
// written to path on Save.
func OpenOrCreate(path string) (*Workbook, error) {
	w, err := Open(path)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	w = New()
	w.path = path
	return w, nil
}

// File exposes the underlying excelize file.
func (w *Workbook) File() *excelize.File { return w.file }

// Path returns the file path the workbook saves to.
func (w *Workbook) Path() string { return w.path }

// Name returns the file name without directory and extension.
func (w *Workbook) Name() string {
	base := filepath.Base(w.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Save writes the workbook back to its path.
func (w *Workbook) Save() error {
	if w.path == "" {
		return fmt.Errorf("workbook has no path")
	}
	return w.SaveAs(w.path)
}

// SaveAs writes the workbook to path and makes path the new save target.
func (w *Workbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	w.path = path
	return nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// =============================================================================
// SHEETS
// =============================================================================

// Sheets returns the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	var sheets []string
	for _, name := range w.file.GetSheetList() {
		if w.placeholder != "" && name == w.placeholder {
			continue
		}
		sheets = append(sheets, name)
	}
	return sheets
}

// SheetName returns the stored spelling of a sheet name.
func (w *Workbook) SheetName(name string) (string, bool) {
	for _, sheet := range w.Sheets() {
		if strings.EqualFold(sheet, name) {
			return sheet, true
		}
	}
	return "", false
}

// HasSheet reports whether the workbook contains the sheet.
func (w *Workbook) HasSheet(name string) bool {
	_, ok := w.SheetName(name)
	return ok
}

// EnsureSheet returns the stored name of the sheet, creating it first when it
// does not exist. A newly created sheet gets its header from header (which may
// be nil).
//
// RETURNS:
//   - The sheet name as stored in the workbook.
//   - Whether the sheet was created by this call.
//   - An error if the name is invalid or the header cannot be written.
func (w *Workbook) EnsureSheet(name string, header HeaderFunc) (string, bool, error) {
	if existing, ok := w.SheetName(name); ok {
		return existing, false, nil
	}

	if w.placeholder != "" && strings.EqualFold(name, w.placeholder) {
		// The default sheet becomes a real one.
		w.placeholder = ""
	} else if _, err := w.file.NewSheet(name); err != nil {
		return "", false, fmt.Errorf("failed to create sheet %q: %w", name, err)
	}

	if err := w.dropPlaceholder(); err != nil {
		return "", false, err
	}

	if header != nil {
		if err := header(w, name); err != nil {
			return "", true, fmt.Errorf("failed to write header of %q: %w", name, err)
		}
	}
	return name, true, nil
}

// dropPlaceholder removes the default sheet of a new file once another sheet
// exists, as long as nothing was written to it.
func (w *Workbook) dropPlaceholder() error {
	if w.placeholder == "" {
		return nil
	}
	rows, err := w.LastRow(w.placeholder)
	if err != nil {
		return err
	}
	if rows == 0 {
		if err := w.file.DeleteSheet(w.placeholder); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
	}
	w.placeholder = ""
	return nil
}

func (w *Workbook) require(sheet string) (string, error) {
	name, ok := w.SheetName(sheet)
	if !ok {
		if w.placeholder != "" && strings.EqualFold(sheet, w.placeholder) {
			return w.placeholder, nil
		}
		return "", fmt.Errorf("%w: %q", ErrSheetMissing, sheet)
	}
	return name, nil
}

// =============================================================================
// CELL ACCESS
// =============================================================================

// LastRow returns the number of the last row holding a value or formula,
// or 0 for an empty sheet.
func (w *Workbook) LastRow(sheet string) (int, error) {
	name, err := w.require(sheet)
	if err != nil {
		return 0, err
	}
	rows, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, fmt.Errorf("failed to read rows of %q: %w", name, err)
	}
	return len(rows), nil
}

// Value returns the raw (unformatted) value of a cell.
func (w *Workbook) Value(sheet, col string, row int) (string, error) {
	name, cell, err := w.address(sheet, col, row)
	if err != nil {
		return "", err
	}
	value, err := w.file.GetCellValue(name, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", fmt.Errorf("failed to read %s!%s: %w", name, cell, err)
	}
	return value, nil
}

// Column returns the raw values of one column from row `from` down to the
// last row of the sheet. Index 0 of the result is row `from`.
func (w *Workbook) Column(sheet, col string, from int) ([]string, error) {
	name, err := w.require(sheet)
	if err != nil {
		return nil, err
	}
	idx, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return nil, err
	}
	rows, err := w.file.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %q: %w", name, err)
	}

	if from < 1 {
		from = 1
	}
	var values []string
	for r := from; r <= len(rows); r++ {
		row := rows[r-1]
		if idx <= len(row) {
			values = append(values, row[idx-1])
		} else {
			values = append(values, "")
		}
	}
	return values, nil
}

// SetValue writes a value to a cell.
func (w *Workbook) SetValue(sheet, col string, row int, value interface{}) error {
	name, cell, err := w.address(sheet, col, row)
	if err != nil {
		return err
	}
	if err := w.file.SetCellValue(name, cell, value); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", name, cell, err)
	}
	return nil
}

// Formula returns the formula of a cell without the leading "=", or "" when
// the cell holds no formula.
func (w *Workbook) Formula(sheet, col string, row int) (string, error) {
	name, cell, err := w.address(sheet, col, row)
	if err != nil {
		return "", err
	}
	formula, err := w.file.GetCellFormula(name, cell)
	if err != nil {
		return "", fmt.Errorf("failed to read formula %s!%s: %w", name, cell, err)
	}
	return strings.TrimPrefix(formula, "="), nil
}

// SetFormula writes a formula to a cell. A leading "=" is accepted and
// dropped, since the file format stores formulas without it.
func (w *Workbook) SetFormula(sheet, col string, row int, formula string) error {
	return w.setFormula(sheet, col, row, formula, false)
}

// SetArrayFormula writes a single-cell array formula (needed for MAXIFS over
// INDIRECT ranges in older spreadsheet versions).
func (w *Workbook) SetArrayFormula(sheet, col string, row int, formula string) error {
	return w.setFormula(sheet, col, row, formula, true)
}

func (w *Workbook) setFormula(sheet, col string, row int, formula string, array bool) error {
	name, cell, err := w.address(sheet, col, row)
	if err != nil {
		return err
	}
	formula = strings.TrimPrefix(strings.TrimSpace(formula), "=")

	var opts []excelize.FormulaOpts
	if array {
		kind, ref := excelize.STCellFormulaTypeArray, cell+":"+cell
		opts = append(opts, excelize.FormulaOpts{Type: &kind, Ref: &ref})
	}
	if err := w.file.SetCellFormula(name, cell, formula, opts...); err != nil {
		return fmt.Errorf("failed to write formula %s!%s: %w", name, cell, err)
	}
	return nil
}

// SetFormat applies a display format to a cell.
func (w *Workbook) SetFormat(sheet, col string, row int, format Format) error {
	name, cell, err := w.address(sheet, col, row)
	if err != nil {
		return err
	}
	id, ok := w.styles[format]
	if !ok {
		id, err = w.file.NewStyle(format.style())
		if err != nil {
			return fmt.Errorf("failed to create style: %w", err)
		}
		w.styles[format] = id
	}
	if err := w.file.SetCellStyle(name, cell, cell, id); err != nil {
		return fmt.Errorf("failed to format %s!%s: %w", name, cell, err)
	}
	return nil
}

// Merge merges a rectangular cell range such as A1:A2.
func (w *Workbook) Merge(sheet, topLeft, bottomRight string) error {
	name, err := w.require(sheet)
	if err != nil {
		return err
	}
	return w.file.MergeCell(name, topLeft, bottomRight)
}

// ClearRows deletes every row from `from` to the last row of the sheet and
// returns how many rows were removed.
func (w *Workbook) ClearRows(sheet string, from int) (int, error) {
	name, err := w.require(sheet)
	if err != nil {
		return 0, err
	}
	last, err := w.LastRow(name)
	if err != nil {
		return 0, err
	}
	removed := 0
	// Bottom-up, so the remaining row numbers stay valid.
	for r := last; r >= from; r-- {
		if err := w.file.RemoveRow(name, r); err != nil {
			return removed, fmt.Errorf("failed to delete row %d of %q: %w", r, name, err)
		}
		removed++
	}
	return removed, nil
}

// DeleteRow deletes a single row; rows below move up.
func (w *Workbook) DeleteRow(sheet string, row int) error {
	name, err := w.require(sheet)
	if err != nil {
		return err
	}
	return w.file.RemoveRow(name, row)
}

// =============================================================================
// NAMED LISTS
// =============================================================================

// WriteNameList replaces column A of `sheet` with names, points the
// workbook-scoped defined name rangeName at them and hides the sheet.
// An empty list leaves the defined name undefined.
func (w *Workbook) WriteNameList(sheet, rangeName string, names []string) error {
	sheet, _, err := w.EnsureSheet(sheet, nil)
	if err != nil {
		return err
	}

	// Dropped before the rows go, so row removal has nothing to adjust.
	// The name may not exist yet.
	_ = w.file.DeleteDefinedName(&excelize.DefinedName{Name: rangeName})

	if _, err := w.ClearRows(sheet, 1); err != nil {
		return err
	}
	for i, name := range names {
		if err := w.SetValue(sheet, "A", i+1, name); err != nil {
			return err
		}
	}

	if len(names) > 0 {
		err := w.file.SetDefinedName(&excelize.DefinedName{
			Name:     rangeName,
			RefersTo: fmt.Sprintf("%s!$A$1:$A$%d", QuoteSheet(sheet), len(names)),
		})
		if err != nil {
			return fmt.Errorf("failed to define %s: %w", rangeName, err)
		}
	}

	// Hiding fails silently for the active sheet; that only affects display.
	_ = w.file.SetSheetVisible(sheet, false)
	return nil
}

// DefinedName returns what a workbook-scoped defined name refers to.
func (w *Workbook) DefinedName(rangeName string) (string, bool) {
	for _, dn := range w.file.GetDefinedName() {
		if dn.Name == rangeName && (dn.Scope == "" || dn.Scope == "Workbook") {
			return dn.RefersTo, true
		}
	}
	return "", false
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// QuoteSheet quotes a sheet name for use in a cell reference, doubling any
// embedded apostrophes: Bu Ani's → 'Bu Ani''s'.
func QuoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// Cell joins a column letter and row number into a cell reference.
func Cell(col string, row int) string {
	cell, err := excelize.JoinCellName(col, row)
	if err != nil {
		return fmt.Sprintf("%s%d", col, row)
	}
	return cell
}

func (w *Workbook) address(sheet, col string, row int) (string, string, error) {
	name, err := w.require(sheet)
	if err != nil {
		return "", "", err
	}
	cell, err := excelize.JoinCellName(col, row)
	if err != nil {
		return "", "", fmt.Errorf("invalid cell %s%d: %w", col, row, err)
	}
	return name, cell, nil
}
