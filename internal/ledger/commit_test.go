package ledger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/purchase-ledger/internal/aggregate"
	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
	"github.com/ginjaninja78/purchase-ledger/pkg/utils"
)

func purchase(vendor, name, category string) types.Purchase {
	item := rice()
	item.Vendor = vendor
	item.Name = name
	item.Category = category
	return types.Purchase{Date: purchaseDate, Item: item}
}

func TestCommit_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchasing.xlsx")

	var seen []int
	result, err := Commit(path, []types.Purchase{
		purchase("VendorA", "Rice", "Fresh"),
		purchase("VendorB", "Rice", "Fresh"),
		purchase("VendorB", "Soap", "Cleaning"),
	}, CommitOptions{
		Config:      config.Default(),
		Logger:      testLogger(),
		OnCommitted: func(i int, _ types.Purchase) { seen = append(seen, i) },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Committed)
	assert.Empty(t, result.Backup)
	assert.Equal(t, []int{0, 1, 2}, seen)

	wb, err := workbook.Open(path)
	require.NoError(t, err)
	defer wb.Close()

	for _, sheet := range []string{"VendorA", "VendorB", "Fresh", "Cleaning", "DATA"} {
		assert.True(t, wb.HasSheet(sheet), sheet)
	}
	assert.False(t, wb.HasSheet("Sheet1"))

	avg, err := wb.Formula("Fresh", "D", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorA", "VendorB"}, aggregate.ParseVendors(avg))
}

func TestCommit_StopsAtFirstFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchasing.xlsx")
	opts := CommitOptions{Config: config.Default(), Logger: testLogger()}

	_, err := Commit(path, []types.Purchase{purchase("VendorA", "Rice", "Fresh")}, opts)
	require.NoError(t, err)

	result, err := Commit(path, []types.Purchase{
		purchase("VendorA", "Sugar", "Fresh"),
		purchase("VendorB", "Salt", ""),
		purchase("VendorC", "Pepper", "Fresh"),
	}, opts)
	require.Error(t, err)

	var commitErr *CommitError
	require.True(t, errors.As(err, &commitErr))
	assert.Equal(t, 1, commitErr.Index)
	assert.Equal(t, "Salt", commitErr.Item.Name)
	assert.ErrorIs(t, err, aggregate.ErrNoCategory)
	assert.Contains(t, err.Error(), `"Salt"`)

	assert.Equal(t, 1, result.Committed)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "purchasing.bak"), result.Backup)
	assert.True(t, utils.FileExists(result.Backup))

	wb, err := workbook.Open(path)
	require.NoError(t, err)
	defer wb.Close()

	sugar, err := wb.Value("VendorA", "B", 4)
	require.NoError(t, err)
	assert.Equal(t, "Sugar", sugar)
	assert.False(t, wb.HasSheet("VendorB"), "failed record is not saved")
	assert.False(t, wb.HasSheet("VendorC"), "records after the failure are not attempted")
}

func TestCommit_SkipBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "purchasing.xlsx")
	opts := CommitOptions{Config: config.Default(), Logger: testLogger(), SkipBackup: true}

	_, err := Commit(path, []types.Purchase{purchase("VendorA", "Rice", "Fresh")}, opts)
	require.NoError(t, err)
	result, err := Commit(path, []types.Purchase{purchase("VendorA", "Rice", "Fresh")}, opts)
	require.NoError(t, err)

	assert.Empty(t, result.Backup)
	assert.False(t, utils.FileExists(filepath.Join(filepath.Dir(path), "purchasing.bak")))
}
