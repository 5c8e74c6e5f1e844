package ledger

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/purchase-ledger/internal/aggregate"
	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
	"github.com/ginjaninja78/purchase-ledger/pkg/utils"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var purchaseDate = time.Date(2019, time.March, 30, 0, 0, 0, 0, time.UTC)

func rice() types.Item {
	return types.Item{
		Name:        "Rice",
		Quantity:    decimal.NewFromInt(2),
		Unit:        "sack",
		Cost:        decimal.NewFromInt(10000),
		PackageSize: decimal.NewFromInt(1000),
		PackageUnit: "g",
		Category:    "Fresh",
	}
}

func newWriter(t *testing.T) (*Writer, *workbook.Workbook, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "purchasing.xlsx")
	wb, err := workbook.OpenOrCreate(path)
	require.NoError(t, err)
	t.Cleanup(func() { wb.Close() })

	cfg := config.Default()
	m := aggregate.New(wb, aggregate.SettingsFor(cfg), testLogger())
	return NewWriter(wb, m, SettingsFor(cfg), testLogger()), wb, path
}

func calc(t *testing.T, wb *workbook.Workbook, sheet, cell string) string {
	t.Helper()
	value, err := wb.File().CalcCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return value
}

func TestAppend_NewItemSingleVendor(t *testing.T) {
	w, wb, path := newWriter(t)

	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))

	name, err := wb.Value("VendorA", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, "Rice", name)

	total, err := wb.Formula("VendorA", "G", 3)
	require.NoError(t, err)
	assert.Equal(t, "D3*F3", total)
	assert.Equal(t, "20000", calc(t, wb, "VendorA", "G3"))

	unitPrice, err := wb.Formula("VendorA", "J", 3)
	require.NoError(t, err)
	assert.Equal(t, "G3/H3", unitPrice)
	assert.Equal(t, "20", calc(t, wb, "VendorA", "J3"))

	category, err := wb.Value("VendorA", "K", 3)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", category)

	aggName, err := wb.Value("Fresh", "A", 3)
	require.NoError(t, err)
	assert.Equal(t, "Rice", aggName)

	avg, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA"}, aggregate.ParseVendors(avg))

	assert.True(t, utils.FileExists(path), "each append is saved")
}

func TestAppend_SecondVendorSameItem(t *testing.T) {
	w, wb, _ := newWriter(t)

	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))
	require.NoError(t, w.Append("VendorB", rice(), purchaseDate))

	avg, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA", "VendorB"}, aggregate.ParseVendors(avg))

	rows, err := wb.LastRow("Fresh")
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	refersTo, ok := wb.DefinedName("Vendors")
	require.True(t, ok)
	assert.Equal(t, "'DATA'!$A$1:$A$2", refersTo)
}

func TestAppend_RepeatPurchaseAppendsRow(t *testing.T) {
	w, wb, _ := newWriter(t)

	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))
	require.NoError(t, w.Append("VendorA", rice(), purchaseDate.AddDate(0, 0, 7)))

	last, err := wb.LastRow("VendorA")
	require.NoError(t, err)
	assert.Equal(t, 4, last)

	total, err := wb.Formula("VendorA", "G", 4)
	require.NoError(t, err)
	assert.Equal(t, "D4*F4", total)

	avg, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, aggregate.AverageFormula(3, []string{"VendorA"}), avg)
}

func TestAppend_ReusesTrailingBlankRows(t *testing.T) {
	w, wb, _ := newWriter(t)

	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))
	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))

	// Simulate a manual deletion that left the rest of row 4 behind.
	require.NoError(t, wb.SetValue("VendorA", "B", 4, ""))

	sugar := rice()
	sugar.Name = "Sugar"
	require.NoError(t, w.Append("VendorA", sugar, purchaseDate))

	name, err := wb.Value("VendorA", "B", 4)
	require.NoError(t, err)
	assert.Equal(t, "Sugar", name)

	last, err := wb.LastRow("VendorA")
	require.NoError(t, err)
	assert.Equal(t, 4, last)
}

func TestAppend_Formats(t *testing.T) {
	w, wb, _ := newWriter(t)
	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))

	tests := []struct {
		cell string
		want string
	}{
		{"A3", "dd-mmm-yy"},
		{"F3", `_("Rp"* #,##0_);_("Rp"* (#,##0);_("Rp"* "-"_);_(@_)`},
		{"G3", `_("Rp"* #,##0_);_("Rp"* (#,##0);_("Rp"* "-"_);_(@_)`},
		{"H3", "#,##0"},
		{"J3", `_("Rp"* #,##0_);_("Rp"* (#,##0);_("Rp"* "-"_);_(@_)`},
	}
	for _, tt := range tests {
		id, err := wb.File().GetCellStyle("VendorA", tt.cell)
		require.NoError(t, err)
		style, err := wb.File().GetStyle(id)
		require.NoError(t, err)
		require.NotNil(t, style.CustomNumFmt, tt.cell)
		assert.Equal(t, tt.want, *style.CustomNumFmt, tt.cell)
	}
}

func TestAppend_VendorHeader(t *testing.T) {
	w, wb, _ := newWriter(t)
	require.NoError(t, w.Append("VendorA", rice(), purchaseDate))

	for cell, want := range map[string]string{"A1": "DATE", "B1": "ITEM", "J1": "PRICE", "K1": "CATEGORY", "E2": "purchase"} {
		got, err := wb.File().GetCellValue("VendorA", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
}

func TestAppend_Rejects(t *testing.T) {
	w, wb, _ := newWriter(t)

	assert.Error(t, w.Append(" ", rice(), purchaseDate))

	for _, reserved := range []string{"Fresh", "packaging", "ITEM LIST", "DATA"} {
		err := w.Append(reserved, rice(), purchaseDate)
		assert.ErrorIs(t, err, ErrNotVendorSheet, reserved)
	}
	assert.Empty(t, wb.Sheets())

	nameless := rice()
	nameless.Name = "  "
	assert.ErrorIs(t, w.Append("VendorA", nameless, purchaseDate), aggregate.ErrNoName)

	uncategorized := rice()
	uncategorized.Category = ""
	err := w.Append("VendorA", uncategorized, purchaseDate)
	assert.True(t, errors.Is(err, aggregate.ErrNoCategory))
	assert.False(t, wb.HasSheet("Fresh"))
}
