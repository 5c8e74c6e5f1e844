package aggregate

import (
	"fmt"
	"strings"

	"github.com/xuri/efp"

	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
)

// =============================================================================
// FORMULA TEMPLATES
// =============================================================================
//
// Category rows carry two live formulas:
//
//   D  moving average price per content unit
//   E  maximum price per content unit
//
// Per-vendor form (one SUMIF/COUNTIF pair per vendor selling the item):
//
//   SUM(SUMIF('A'!B:B, A3, 'A'!J:J), SUMIF('B'!B:B, A3, 'B'!J:J)) / SUM(COUNTIF('A'!B:B, A3), COUNTIF('B'!B:B, A3))
//
// Named-range form (every sheet listed in the Vendors range):
//
//   SUMPRODUCT(SUMIF(INDIRECT("'"&Vendors&"'!"&"B:B"),A3, INDIRECT("'"&Vendors&"'!"&"J:J"))) / SUMPRODUCT(COUNTIF(INDIRECT("'"&Vendors&"'!"&"B:B"), A3))
//
// Formulas are stored without the leading "=".
//
// =============================================================================

// Columns holds the vendor sheet columns the formulas look at.
type Columns struct {
	Name  string
	Price string
}

// DefaultColumns matches the standard vendor sheet layout.
var DefaultColumns = Columns{Name: "B", Price: "J"}

// AverageFormula builds the per-vendor average formula for category row `row`.
func (c Columns) AverageFormula(row int, vendors []string) string {
	sums := make([]string, len(vendors))
	counts := make([]string, len(vendors))
	for i, vendor := range vendors {
		quoted := workbook.QuoteSheet(vendor)
		sums[i] = fmt.Sprintf("SUMIF(%s!%s:%s, A%d, %s!%s:%s)",
			quoted, c.Name, c.Name, row, quoted, c.Price, c.Price)
		counts[i] = fmt.Sprintf("COUNTIF(%s!%s:%s, A%d)", quoted, c.Name, c.Name, row)
	}
	return fmt.Sprintf("SUM(%s) / SUM(%s)", strings.Join(sums, ", "), strings.Join(counts, ", "))
}

// MaxFormula builds the per-vendor maximum price formula for row `row`.
func (c Columns) MaxFormula(row int, vendors []string) string {
	parts := make([]string, len(vendors))
	for i, vendor := range vendors {
		quoted := workbook.QuoteSheet(vendor)
		parts[i] = fmt.Sprintf("MAXIFS(%s!%s:%s, %s!%s:%s, A%d)",
			quoted, c.Price, c.Price, quoted, c.Name, c.Name, row)
	}
	return fmt.Sprintf("MAX(%s)", strings.Join(parts, ", "))
}

// NamedAverageFormula builds the named-range average formula for row `row`.
func (c Columns) NamedAverageFormula(row int, rangeName string) string {
	return fmt.Sprintf(
		`SUMPRODUCT(SUMIF(%s,A%d, %s)) / SUMPRODUCT(COUNTIF(%s, A%d))`,
		indirect(rangeName, c.Name), row, indirect(rangeName, c.Price),
		indirect(rangeName, c.Name), row)
}

// NamedMaxFormula builds the named-range maximum formula for row `row`.
func (c Columns) NamedMaxFormula(row int, rangeName string) string {
	return fmt.Sprintf(`MAX(MAXIFS(%s, %s, A%d))`,
		indirect(rangeName, c.Price), indirect(rangeName, c.Name), row)
}

func indirect(rangeName, col string) string {
	return fmt.Sprintf(`INDIRECT("'"&%s&"'!"&"%s:%s")`, rangeName, col, col)
}

// Package-level shorthands for the default layout.

func AverageFormula(row int, vendors []string) string {
	return DefaultColumns.AverageFormula(row, vendors)
}

func MaxFormula(row int, vendors []string) string {
	return DefaultColumns.MaxFormula(row, vendors)
}

func NamedAverageFormula(row int, rangeName string) string {
	return DefaultColumns.NamedAverageFormula(row, rangeName)
}

func NamedMaxFormula(row int, rangeName string) string {
	return DefaultColumns.NamedMaxFormula(row, rangeName)
}

// =============================================================================
// FORMULA PARSING
// =============================================================================

// ParseVendors returns the vendor sheets referenced by a per-vendor average
// formula, in formula order and without duplicates. Sheet names come from
// the sheet-qualified range arguments of each SUMIF; the tokenizer has
// already removed the quotes and undoubled embedded apostrophes.
// Named-range formulas reference no sheet directly and yield nil.
func ParseVendors(formula string) []string {
	var (
		vendors   []string
		functions []string
	)
	seen := make(map[string]bool)

	parser := efp.ExcelParser()
	for _, token := range parser.Parse(formula) {
		switch {
		case token.TType == efp.TokenTypeFunction && token.TSubType == efp.TokenSubTypeStart:
			functions = append(functions, strings.ToUpper(token.TValue))
		case token.TType == efp.TokenTypeFunction && token.TSubType == efp.TokenSubTypeStop:
			if len(functions) > 0 {
				functions = functions[:len(functions)-1]
			}
		case token.TType == efp.TokenTypeOperand && token.TSubType == efp.TokenSubTypeRange:
			if len(functions) == 0 || functions[len(functions)-1] != "SUMIF" {
				continue
			}
			i := strings.LastIndex(token.TValue, "!")
			if i <= 0 {
				continue
			}
			vendor := token.TValue[:i]
			if !seen[vendor] {
				seen[vendor] = true
				vendors = append(vendors, vendor)
			}
		}
	}
	return vendors
}

// IsNamedFormula reports whether a formula is the named-range form.
func IsNamedFormula(formula, rangeName string) bool {
	return strings.Contains(formula, `INDIRECT("'"&`+rangeName+`&`)
}
