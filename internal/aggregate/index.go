package aggregate

import (
	"fmt"

	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
)

// firstDataRow is the first row below the two header rows, on vendor and
// category sheets alike.
const firstDataRow = 3

// StockIndex records which item names each vendor sheet contains. Bulk
// operations build it once instead of re-reading every vendor sheet for every
// new item.
type StockIndex struct {
	vendors []string
	stock   map[string]map[string]bool
}

// BuildStockIndex reads the name column of each vendor sheet.
//
// PARAMETERS:
//   - wb: The workbook to read.
//   - vendors: Vendor sheet names in workbook order.
//   - nameCol: The vendor sheet item name column (normally "B").
func BuildStockIndex(wb *workbook.Workbook, vendors []string, nameCol string) (*StockIndex, error) {
	idx := &StockIndex{stock: make(map[string]map[string]bool, len(vendors))}
	for _, vendor := range vendors {
		names, err := wb.Column(vendor, nameCol, firstDataRow)
		if err != nil {
			return nil, fmt.Errorf("failed to index vendor %q: %w", vendor, err)
		}
		for _, name := range names {
			idx.Add(vendor, name)
		}
		if _, ok := idx.stock[vendor]; !ok {
			idx.addVendor(vendor)
		}
	}
	return idx, nil
}

// Add records that vendor sells the named item.
func (s *StockIndex) Add(vendor, name string) {
	name = types.CleanName(name)
	if _, ok := s.stock[vendor]; !ok {
		s.addVendor(vendor)
	}
	if name != "" {
		s.stock[vendor][name] = true
	}
}

func (s *StockIndex) addVendor(vendor string) {
	s.vendors = append(s.vendors, vendor)
	s.stock[vendor] = make(map[string]bool)
}

// Vendors returns the indexed vendor sheets in order.
func (s *StockIndex) Vendors() []string {
	return append([]string(nil), s.vendors...)
}

// Stocks reports whether vendor sells the named item.
func (s *StockIndex) Stocks(vendor, name string) bool {
	return s.stock[vendor][types.CleanName(name)]
}

// VendorsOf returns the vendors selling the named item, in index order.
func (s *StockIndex) VendorsOf(name string) []string {
	name = types.CleanName(name)
	var vendors []string
	for _, vendor := range s.vendors {
		if s.stock[vendor][name] {
			vendors = append(vendors, vendor)
		}
	}
	return vendors
}
