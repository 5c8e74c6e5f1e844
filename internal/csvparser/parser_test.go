package csvparser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
)

func settings() config.BatchSettings {
	return config.Default().Batch
}

func TestParseReader(t *testing.T) {
	input := strings.Join([]string{
		"Date,Vendor,Item,Brand,Qty,Unit,Cost,Package Size,Package-Unit,Category",
		"2024-01-15,VendorA, Rice ,Rojolele,2,sack,\"350,000\",25000,g,Fresh",
		"",
		"15-Jan-24,VendorB,Soap,,1,box,12500.50,6,pcs,cleaning",
	}, "\n")

	batch, err := ParseReader(strings.NewReader(input), settings())
	require.NoError(t, err)
	require.Len(t, batch.Purchases, 2)
	assert.Equal(t, []int{2, 4}, batch.Lines)
	assert.Equal(t, []string{
		ColDate, ColVendor, ColItem, ColBrand, ColQuantity, ColUnit,
		ColCost, ColPackageSize, ColPackageUnit, ColCategory,
	}, batch.Headers)

	first := batch.Purchases[0]
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "VendorA", first.Item.Vendor)
	assert.Equal(t, "Rice", first.Item.Name)
	assert.Equal(t, "Rojolele", first.Item.Brand)
	assert.True(t, decimal.NewFromInt(2).Equal(first.Item.Quantity))
	assert.True(t, decimal.NewFromInt(350000).Equal(first.Item.Cost))
	assert.True(t, decimal.NewFromInt(25000).Equal(first.Item.PackageSize))
	assert.Equal(t, "g", first.Item.PackageUnit)
	assert.Equal(t, "Fresh", first.Item.Category)

	second := batch.Purchases[1]
	assert.Equal(t, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), second.Date)
	assert.True(t, decimal.RequireFromString("12500.50").Equal(second.Item.Cost))
	assert.Equal(t, "cleaning", second.Item.Category, "categories are normalized by validation")
}

func TestParseReader_ColumnOrderAndShortRows(t *testing.T) {
	input := "category;item;vendor;date;quantity;cost;package_size;unit\n" +
		"Fresh;Rice;VendorA;2024-01-15;1;10000;1000\n"

	s := settings()
	s.Delimiter = "semicolon"
	batch, err := ParseReader(strings.NewReader(input), s)
	require.NoError(t, err)
	require.Len(t, batch.Purchases, 1)
	assert.Equal(t, "Rice", batch.Purchases[0].Item.Name)
	assert.Empty(t, batch.Purchases[0].Item.Unit)
}

func TestParseReader_Errors(t *testing.T) {
	header := "date,vendor,item,quantity,cost,package_size,category\n"

	tests := []struct {
		name    string
		input   string
		line    int
		column  string
		wantErr error
	}{
		{name: "missing column", input: "date,vendor,item\n", wantErr: ErrMissingColumn},
		{name: "bad date", input: header + "yesterday,V,Rice,1,1,1,Fresh\n", line: 2, column: ColDate},
		{name: "bad amount", input: header + "2024-01-15,V,Rice,two,1,1,Fresh\n", line: 2, column: ColQuantity},
		{name: "blank date", input: header + "2024-01-15,V,Rice,1,1,1,Fresh\n,V,Salt,1,1,1,Fresh\n", line: 3, column: ColDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReader(strings.NewReader(tt.input), settings())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tt.line, rowErr.Line)
			assert.Equal(t, tt.column, rowErr.Column)
		})
	}

	_, err := ParseReader(strings.NewReader(""), settings())
	assert.Error(t, err)
}

func TestParseReader_Encodings(t *testing.T) {
	row := "date,vendor,item,quantity,cost,package_size,category\n2024-01-15,Café Ñusa,Jalapeño,1,1,1,Fresh\n"

	encoded, err := charmap.Windows1252.NewEncoder().String(row)
	require.NoError(t, err)

	s := settings()
	s.Encoding = "windows-1252"
	batch, err := ParseReader(strings.NewReader(encoded), s)
	require.NoError(t, err)
	assert.Equal(t, "Café Ñusa", batch.Purchases[0].Item.Vendor)
	assert.Equal(t, "Jalapeño", batch.Purchases[0].Item.Name)

	// UTF-8 with a byte order mark.
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte(row)...)
	batch, err = ParseReader(bytes.NewReader(withBOM), settings())
	require.NoError(t, err)
	assert.Equal(t, "Café Ñusa", batch.Purchases[0].Item.Vendor)

	s.Encoding = "EBCDIC"
	_, err = ParseReader(strings.NewReader(row), s)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.csv")
	require.NoError(t, os.WriteFile(path,
		[]byte("date,vendor,item,quantity,cost,package_size,category\n2024-01-15,VendorA,Rice,2,10000,1000,Fresh\n"), 0644))

	batch, err := Parse(path, settings())
	require.NoError(t, err)
	assert.Equal(t, path, batch.SourceFile)
	assert.Len(t, batch.Purchases, 1)

	_, err = Parse(filepath.Join(t.TempDir(), "missing.csv"), settings())
	assert.Error(t, err)
}
