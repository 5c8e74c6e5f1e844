package workbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSheetReplacesDefaultSheet(t *testing.T) {
	w := New()
	defer w.Close()

	var headerCalls int
	header := func(w *Workbook, sheet string) error {
		headerCalls++
		return w.SetValue(sheet, "A", 1, "DATE")
	}

	name, created, err := w.EnsureSheet("VendorA", header)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "VendorA", name)
	assert.Equal(t, []string{"VendorA"}, w.File().GetSheetList())

	name, created, err = w.EnsureSheet("vendora", header)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "VendorA", name)
	assert.Equal(t, 1, headerCalls)
}

func TestCellAccess(t *testing.T) {
	w := New()
	defer w.Close()
	_, _, err := w.EnsureSheet("VendorA", nil)
	require.NoError(t, err)

	require.NoError(t, w.SetValue("VendorA", "B", 3, "Rice"))
	require.NoError(t, w.SetValue("VendorA", "B", 5, "Salt"))

	last, err := w.LastRow("VendorA")
	require.NoError(t, err)
	assert.Equal(t, 5, last)

	value, err := w.Value("VendorA", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, "Rice", value)

	column, err := w.Column("VendorA", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rice", "", "Salt"}, column)

	require.NoError(t, w.SetFormula("VendorA", "G", 3, "=D3*F3"))
	formula, err := w.Formula("VendorA", "G", 3)
	require.NoError(t, err)
	assert.Equal(t, "D3*F3", formula)

	formula, err = w.Formula("VendorA", "B", 3)
	require.NoError(t, err)
	assert.Empty(t, formula)
}

func TestMissingSheet(t *testing.T) {
	w := New()
	defer w.Close()

	_, err := w.Value("Nowhere", "A", 1)
	assert.ErrorIs(t, err, ErrSheetMissing)

	_, err = w.ClearRows("Nowhere", 1)
	assert.ErrorIs(t, err, ErrSheetMissing)
}

func TestClearRows(t *testing.T) {
	w := New()
	defer w.Close()
	_, _, err := w.EnsureSheet("Fresh", nil)
	require.NoError(t, err)

	for row := 1; row <= 4; row++ {
		require.NoError(t, w.SetValue("Fresh", "A", row, row))
	}

	removed, err := w.ClearRows("Fresh", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	last, err := w.LastRow("Fresh")
	require.NoError(t, err)
	assert.Equal(t, 2, last)
}

func TestWriteNameList(t *testing.T) {
	w := New()
	defer w.Close()
	_, _, err := w.EnsureSheet("VendorA", nil)
	require.NoError(t, err)

	require.NoError(t, w.WriteNameList("DATA", "Vendors", []string{"VendorA", "VendorB"}))
	ref, ok := w.DefinedName("Vendors")
	require.True(t, ok)
	assert.Equal(t, "'DATA'!$A$1:$A$2", ref)

	names, err := w.Column("DATA", "A", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA", "VendorB"}, names)

	visible, err := w.File().GetSheetVisible("DATA")
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, w.WriteNameList("DATA", "Vendors", []string{"VendorB"}))
	ref, ok = w.DefinedName("Vendors")
	require.True(t, ok)
	assert.Equal(t, "'DATA'!$A$1:$A$1", ref)

	last, err := w.LastRow("DATA")
	require.NoError(t, err)
	assert.Equal(t, 1, last)
}

func TestOpenOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Pembelian 2021.xlsx")

	w, err := OpenOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, "Pembelian 2021", w.Name())

	_, _, err = w.EnsureSheet("VendorA", nil)
	require.NoError(t, err)
	require.NoError(t, w.SetValue("VendorA", "B", 3, "Rice"))
	require.NoError(t, w.Save())
	require.NoError(t, w.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"VendorA"}, reopened.Sheets())
	value, err := reopened.Value("VendorA", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, "Rice", value)
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'VendorA'", QuoteSheet("VendorA"))
	assert.Equal(t, "'Bu Ani''s'", QuoteSheet("Bu Ani's"))
	assert.Equal(t, "J12", Cell("J", 12))
}
