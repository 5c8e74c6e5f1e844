package aggregate

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// addVendor creates a vendor sheet listing the given item names from row 3.
func addVendor(t *testing.T, wb *workbook.Workbook, vendor string, names ...string) {
	t.Helper()
	_, _, err := wb.EnsureSheet(vendor, nil)
	require.NoError(t, err)
	require.NoError(t, wb.SetValue(vendor, "B", 1, "ITEM"))
	for i, name := range names {
		require.NoError(t, wb.SetValue(vendor, "B", 3+i, name))
		require.NoError(t, wb.SetValue(vendor, "J", 3+i, 20))
	}
}

func rice(vendor string) types.Item {
	return types.Item{
		Name:        "Rice",
		Vendor:      vendor,
		Quantity:    decimal.NewFromInt(2),
		Unit:        "sack",
		Cost:        decimal.NewFromInt(10000),
		PackageSize: decimal.NewFromInt(1000),
		PackageUnit: "g",
		Category:    "Fresh",
	}
}

func newMaintainer(wb *workbook.Workbook, mode string) *Maintainer {
	cfg := config.Default()
	cfg.FormulaMode = mode
	return New(wb, SettingsFor(cfg), testLogger())
}

func countRows(t *testing.T, wb *workbook.Workbook, sheet, name string) int {
	t.Helper()
	names, err := wb.Column(sheet, "A", 3)
	require.NoError(t, err)
	count := 0
	for _, n := range names {
		if n == name {
			count++
		}
	}
	return count
}

func TestReconcile_NewItemSingleVendor(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	m := newMaintainer(wb, config.FormulaPerVendor)

	require.NoError(t, m.Reconcile(rice("VendorA")))

	require.True(t, wb.HasSheet("Fresh"))
	name, err := wb.Value("Fresh", "A", 3)
	require.NoError(t, err)
	assert.Equal(t, "Rice", name)

	unit, err := wb.Value("Fresh", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, "sack", unit)

	pkg, err := wb.Value("Fresh", "C", 3)
	require.NoError(t, err)
	assert.Equal(t, "g", pkg)

	avg, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t,
		"SUM(SUMIF('VendorA'!B:B, A3, 'VendorA'!J:J)) / SUM(COUNTIF('VendorA'!B:B, A3))",
		avg)

	maxFormula, err := wb.Formula("Fresh", "E", 3)
	require.NoError(t, err)
	assert.Equal(t, "MAX(MAXIFS('VendorA'!J:J, 'VendorA'!B:B, A3))", maxFormula)
}

func TestReconcile_Idempotent(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	m := newMaintainer(wb, config.FormulaPerVendor)

	require.NoError(t, m.Reconcile(rice("VendorA")))
	rows, err := wb.LastRow("Fresh")
	require.NoError(t, err)
	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)

	require.NoError(t, m.Reconcile(rice("VendorA")))
	rowsAgain, err := wb.LastRow("Fresh")
	require.NoError(t, err)
	formulaAgain, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)

	assert.Equal(t, rows, rowsAgain)
	assert.Equal(t, formula, formulaAgain)
}

func TestReconcile_SecondVendorAddsOnePair(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	m := newMaintainer(wb, config.FormulaPerVendor)
	require.NoError(t, m.Reconcile(rice("VendorA")))

	before, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)

	addVendor(t, wb, "VendorB", "Rice")
	require.NoError(t, m.Reconcile(rice("VendorB")))

	after, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA"}, ParseVendors(before))
	assert.Equal(t, []string{"VendorA", "VendorB"}, ParseVendors(after))
	assert.Equal(t, AverageFormula(3, []string{"VendorA", "VendorB"}), after)
	assert.Equal(t, 1, countRows(t, wb, "Fresh", "Rice"))
}

func TestReconcile_NoDuplicateRows(t *testing.T) {
	wb := workbook.New()
	vendors := []string{"VendorA", "VendorB", "VendorC"}
	for _, v := range vendors {
		addVendor(t, wb, v, "Rice", "Sugar")
	}
	m := newMaintainer(wb, config.FormulaPerVendor)

	for i := 0; i < 3; i++ {
		for _, v := range vendors {
			item := rice(v)
			item.Name = "  Rice "
			require.NoError(t, m.Reconcile(item))
		}
	}

	assert.Equal(t, 1, countRows(t, wb, "Fresh", "Rice"))
	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, vendors, ParseVendors(formula))
}

func TestReconcile_NewItemCollectsEveryStockingVendor(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	addVendor(t, wb, "VendorB", "Sugar")
	addVendor(t, wb, "VendorC", " Rice")
	m := newMaintainer(wb, config.FormulaPerVendor)

	require.NoError(t, m.Reconcile(rice("VendorC")))

	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA", "VendorC"}, ParseVendors(formula))
}

func TestReconcile_FillsRowWithoutFormula(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	_, _, err := wb.EnsureSheet("Fresh", CategoryHeader)
	require.NoError(t, err)
	require.NoError(t, wb.SetValue("Fresh", "A", 3, "Rice"))
	require.NoError(t, wb.SetValue("Fresh", "C", 3, "kg"))

	m := newMaintainer(wb, config.FormulaPerVendor)
	require.NoError(t, m.Reconcile(rice("VendorA")))

	rows, err := wb.LastRow("Fresh")
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA"}, ParseVendors(formula))

	// Existing units are kept.
	pkg, err := wb.Value("Fresh", "C", 3)
	require.NoError(t, err)
	assert.Equal(t, "kg", pkg)
}

func TestReconcile_NoVendors(t *testing.T) {
	wb := workbook.New()
	m := newMaintainer(wb, config.FormulaPerVendor)

	err := m.Reconcile(rice("VendorA"))
	require.ErrorIs(t, err, ErrNoVendors)

	rows, err := wb.LastRow("Fresh")
	require.NoError(t, err)
	assert.Equal(t, 2, rows, "only the header is written")
}

func TestReconcile_IncompleteItem(t *testing.T) {
	wb := workbook.New()
	m := newMaintainer(wb, config.FormulaPerVendor)

	item := rice("VendorA")
	item.Name = " "
	assert.ErrorIs(t, m.Reconcile(item), ErrNoName)

	item = rice("VendorA")
	item.Category = ""
	assert.ErrorIs(t, m.Reconcile(item), ErrNoCategory)
}

func TestReconcile_NamedRange(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	m := newMaintainer(wb, config.FormulaNamedRange)

	require.NoError(t, m.Reconcile(rice("VendorA")))

	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t,
		`SUMPRODUCT(SUMIF(INDIRECT("'"&Vendors&"'!"&"B:B"),A3, INDIRECT("'"&Vendors&"'!"&"J:J"))) / SUMPRODUCT(COUNTIF(INDIRECT("'"&Vendors&"'!"&"B:B"), A3))`,
		formula)

	maxFormula, err := wb.Formula("Fresh", "E", 3)
	require.NoError(t, err)
	assert.Equal(t,
		`MAX(MAXIFS(INDIRECT("'"&Vendors&"'!"&"J:J"), INDIRECT("'"&Vendors&"'!"&"B:B"), A3))`,
		maxFormula)

	refersTo, ok := wb.DefinedName("Vendors")
	require.True(t, ok)
	assert.Equal(t, "'DATA'!$A$1:$A$1", refersTo)

	// A new vendor is covered by the range; the formula stays the same.
	addVendor(t, wb, "VendorB", "Rice")
	require.NoError(t, m.Reconcile(rice("VendorB")))
	after, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, formula, after)
	assert.Equal(t, 1, countRows(t, wb, "Fresh", "Rice"))
}

func TestReconcile_NamedRangeMigratesPerVendorFormula(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice")
	require.NoError(t, newMaintainer(wb, config.FormulaPerVendor).Reconcile(rice("VendorA")))

	require.NoError(t, newMaintainer(wb, config.FormulaNamedRange).Reconcile(rice("VendorA")))

	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.True(t, IsNamedFormula(formula, "Vendors"))
	assert.Equal(t, 1, countRows(t, wb, "Fresh", "Rice"))
}

func TestReconcile_WithStockIndex(t *testing.T) {
	wb := workbook.New()
	addVendor(t, wb, "VendorA", "Rice", "Rice", "Salt")
	addVendor(t, wb, "VendorB", "Salt")
	addVendor(t, wb, "VendorC", "Rice ")

	idx, err := BuildStockIndex(wb, []string{"VendorA", "VendorB", "VendorC"}, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA", "VendorC"}, idx.VendorsOf("Rice"))
	assert.True(t, idx.Stocks("VendorB", "Salt"))
	assert.False(t, idx.Stocks("VendorB", "Rice"))

	m := newMaintainer(wb, config.FormulaPerVendor)
	m.UseIndex(idx)
	require.NoError(t, m.Reconcile(rice("VendorA")))

	formula, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA", "VendorC"}, ParseVendors(formula))
}

func TestCategoryHeader(t *testing.T) {
	wb := workbook.New()
	_, created, err := wb.EnsureSheet("Fresh", CategoryHeader)
	require.NoError(t, err)
	assert.True(t, created)

	tests := []struct {
		cell string
		want string
	}{
		{"A1", "ITEM"},
		{"B1", "PURCHASE UNIT"},
		{"C1", "PACKAGE UNIT"},
		{"D1", "MOV AVER"},
		{"D2", "PRICE/UNIT"},
		{"E1", "MAX"},
		{"E2", "PRICE/UNIT"},
	}
	for _, tt := range tests {
		got, err := wb.File().GetCellValue("Fresh", tt.cell)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.cell)
	}

	merged, err := wb.File().GetMergeCells("Fresh")
	require.NoError(t, err)
	assert.Len(t, merged, 3)
}
