// =============================================================================
// Purchase Ledger - Row Classifier
// =============================================================================
//
// This module turns one vendor sheet row into an Item. Legacy rows are often
// incomplete, so the classifier fills the gaps instead of failing:
//
//   | Field        | Source column | When blank                              |
//   |--------------|---------------|-----------------------------------------|
//   | name         | name          | row is not classifiable (ErrBlankName)  |
//   | package unit | package unit  | purchase unit, then the default unit    |
//   | category     | category      | the configured fallback category        |
//   | numbers      | qty/cost/size | zero                                    |
//
// Category labels go through NormalizeCategory, which repairs typos,
// singular/plural forms and synonyms so the label matches a configured
// category sheet.
//
// =============================================================================

package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
)

// ErrBlankName is returned for rows without an item name.
var ErrBlankName = errors.New("row has no item name")

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier extracts Items from vendor sheet rows.
type Classifier struct {
	categories config.CategoryConfig
	columns    config.Columns
	logger     *slog.Logger

	// fold builds the case-insensitive keys labels are matched on.
	fold cases.Caser

	// corrections holds the correction table with folded keys.
	corrections map[string]string
}

// New creates a Classifier for the given category configuration and vendor
// column layout.
func New(categories config.CategoryConfig, columns config.Columns, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	fold := cases.Fold()
	corrections := make(map[string]string, len(categories.Corrections))
	for variant, target := range categories.Corrections {
		corrections[fold.String(strings.TrimSpace(variant))] = target
	}
	return &Classifier{
		categories:  categories,
		columns:     columns,
		logger:      logger,
		fold:        fold,
		corrections: corrections,
	}
}

// Classify reads row `row` of vendor sheet `sheet` into an Item.
//
// RETURNS:
//   - The item, with Vendor set to the sheet name.
//   - ErrBlankName if the name cell is blank; the caller should skip the row.
//   - An error if the sheet cannot be read.
func (c *Classifier) Classify(wb *workbook.Workbook, sheet string, row int) (types.Item, error) {
	read := func(col string) (string, error) {
		value, err := wb.Value(sheet, col, row)
		return strings.TrimSpace(value), err
	}

	name, err := read(c.columns.Name)
	if err != nil {
		return types.Item{}, err
	}
	if name == "" {
		return types.Item{}, fmt.Errorf("%s row %d: %w", sheet, row, ErrBlankName)
	}

	item := types.Item{Name: types.CleanName(name), Vendor: sheet}

	fields := []struct {
		col  string
		dest *string
	}{
		{c.columns.Brand, &item.Brand},
		{c.columns.Unit, &item.Unit},
		{c.columns.PackageUnit, &item.PackageUnit},
	}
	for _, field := range fields {
		if *field.dest, err = read(field.col); err != nil {
			return types.Item{}, err
		}
	}

	numbers := []struct {
		col  string
		dest *decimal.Decimal
	}{
		{c.columns.Quantity, &item.Quantity},
		{c.columns.Cost, &item.Cost},
		{c.columns.PackageSize, &item.PackageSize},
	}
	for _, number := range numbers {
		raw, err := read(number.col)
		if err != nil {
			return types.Item{}, err
		}
		*number.dest = parseNumber(raw)
	}

	if item.PackageUnit == "" {
		item.PackageUnit = item.Unit
		if item.PackageUnit == "" {
			item.PackageUnit = c.categories.DefaultUnit
		}
		c.logger.Debug("Package unit missing, using fallback",
			"sheet", sheet, "row", row, "unit", item.PackageUnit)
	}
	if item.Unit == "" {
		item.Unit = c.categories.DefaultUnit
	}

	label, err := read(c.columns.Category)
	if err != nil {
		return types.Item{}, err
	}
	item.Category = c.NormalizeCategory(label)
	if label != item.Category {
		c.logger.Debug("Category label normalized",
			"sheet", sheet, "row", row, "label", label, "category", item.Category)
	}

	return item, nil
}

// parseNumber reads a numeric cell. Anything unreadable counts as zero.
func parseNumber(raw string) decimal.Decimal {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// CATEGORY NORMALIZATION
// =============================================================================

// NormalizeCategory maps a raw category label onto a configured category.
//
// RESOLUTION ORDER:
//  1. Blank → fallback category
//  2. Case-insensitive match of a configured name
//  3. Correction table (case-insensitive key)
//  4. Singular/plural variants (Utensil → Utensils, Sundry → Sundries)
//  5. Nearest configured name within a small edit distance
//     (Stationery → Stationary, Packing → Packaging)
//  6. Anything else → fallback category
func (c *Classifier) NormalizeCategory(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return c.categories.Fallback
	}
	if name, ok := c.categories.Lookup(label); ok {
		return name
	}

	key := c.fold.String(label)
	if target, ok := c.corrections[key]; ok {
		if name, ok := c.categories.Lookup(target); ok {
			return name
		}
	}

	for _, variant := range pluralVariants(key) {
		if name, ok := c.categories.Lookup(variant); ok {
			return name
		}
	}

	if name, ok := c.nearest(key); ok {
		return name
	}

	c.logger.Warn("Unknown category label, using fallback",
		"label", label, "fallback", c.categories.Fallback)
	return c.categories.Fallback
}

// pluralVariants returns the singular and plural spellings of a label.
func pluralVariants(label string) []string {
	variants := []string{label + "s", label + "es"}
	switch {
	case strings.HasSuffix(label, "ies"):
		variants = append(variants, strings.TrimSuffix(label, "ies")+"y")
	case strings.HasSuffix(label, "y"):
		variants = append(variants, strings.TrimSuffix(label, "y")+"ies")
	}
	if strings.HasSuffix(label, "es") {
		variants = append(variants, strings.TrimSuffix(label, "es"))
	}
	if strings.HasSuffix(label, "s") {
		variants = append(variants, strings.TrimSuffix(label, "s"))
	}
	return variants
}

// nearest returns the configured category closest to label, if it is close
// enough to be a misspelling: at most two edits, and at most a third of the
// label's length.
func (c *Classifier) nearest(label string) (string, bool) {
	best, bestDistance := "", -1
	for _, name := range c.categories.Names {
		d := levenshtein.ComputeDistance(label, c.fold.String(name))
		if bestDistance < 0 || d < bestDistance {
			best, bestDistance = name, d
		}
	}
	limit := len([]rune(label)) / 3
	if limit > 2 {
		limit = 2
	}
	if bestDistance < 0 || bestDistance > limit {
		return "", false
	}
	return best, true
}
