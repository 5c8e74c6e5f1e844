// =============================================================================
// Purchase Ledger - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - classifier
//   - aggregate
//   - ledger
//   - bulk
//
// =============================================================================

package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ITEM TYPES
// =============================================================================

// Item is one purchase line together with its resolved category.
// It is recreated per operation and has no identity beyond its fields.
type Item struct {
	// Name is the item name. It is the join key between a vendor sheet row
	// and its category aggregate row, so it is always stored trimmed.
	Name string

	// Vendor is the name of the vendor sheet the purchase belongs to.
	Vendor string

	// Brand is optional.
	Brand string

	// Quantity is how many purchase units were bought.
	Quantity decimal.Decimal

	// Unit is the purchase unit label (e.g. "sack").
	Unit string

	// Cost is the price paid per purchase unit.
	Cost decimal.Decimal

	// PackageSize is how many content units one purchase unit holds.
	// Example: 1 sack = 25000 g gives PackageSize 25000.
	PackageSize decimal.Decimal

	// PackageUnit is the content unit label (e.g. "g").
	PackageUnit string

	// Category is the resolved category name.
	Category string
}

// Purchase is an item bought on a given date.
type Purchase struct {
	Date time.Time
	Item Item
}

// CleanName strips surrounding whitespace from an item name.
func CleanName(name string) string {
	return strings.TrimSpace(name)
}

// Normalized returns a copy of the item with every text field trimmed.
func (i Item) Normalized() Item {
	i.Name = CleanName(i.Name)
	i.Vendor = strings.TrimSpace(i.Vendor)
	i.Brand = strings.TrimSpace(i.Brand)
	i.Unit = strings.TrimSpace(i.Unit)
	i.PackageUnit = strings.TrimSpace(i.PackageUnit)
	i.Category = strings.TrimSpace(i.Category)
	return i
}

// Total is the line total: quantity times cost.
func (i Item) Total() decimal.Decimal {
	return i.Quantity.Mul(i.Cost)
}

// UnitPrice is the line total divided by the package size. A zero package
// size yields zero.
func (i Item) UnitPrice() decimal.Decimal {
	if i.PackageSize.IsZero() {
		return decimal.Zero
	}
	return i.Total().Div(i.PackageSize)
}

// ReferenceUnit returns the unit the aggregate price refers to: the package
// unit, or the purchase unit when the package unit is missing.
func (i Item) ReferenceUnit() string {
	if i.PackageUnit != "" {
		return i.PackageUnit
	}
	return i.Unit
}
