// =============================================================================
// Purchase Ledger - Validation Engine
// =============================================================================
//
// This module validates purchase records before they are committed. Records
// come from the batch CSV file or the command line, so nothing about them is
// trusted:
//   - Required fields (date, vendor, item, category)
//   - Category must be one of the configured categories
//   - Vendor must be usable as a sheet name and must not collide with a
//     category, miscellaneous or data sheet
//   - Quantities must be positive, costs must not be negative
//   - Package size must be positive (the unit price divides by it)
//
// Validation also normalizes a record: names are trimmed, the category gets
// its configured spelling and a missing package unit is filled in.
//
// ERROR HANDLING:
//   - Errors are collected, not returned one at a time
//   - Each error names the record, field and value
//   - Warnings (e.g. a purchase date in the future) do not block a commit
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// maxSheetName is the longest sheet name the spreadsheet format accepts.
const maxSheetName = 31

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation error.
type ValidationError struct {
	// Severity is SeverityError (blocks the commit) or SeverityWarning.
	Severity string

	// Record is the 1-based position of the purchase in its batch.
	Record int

	// Field is the name of the field that failed validation.
	Field string

	// Value is the actual value that failed validation.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] Record %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Record,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Purchases holds the normalized records, in input order.
	Purchases []types.Purchase

	// Errors contains all validation errors (including warnings).
	Errors []*ValidationError

	// ErrorCount is the number of fatal errors.
	ErrorCount int

	// WarningCount is the number of warnings.
	WarningCount int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks purchases against the ledger configuration.
type Validator struct {
	cfg *config.MainConfig

	// now is the reference time for future-date warnings.
	now func() time.Time

	// StopOnFirstError stops validation after the first fatal error.
	StopOnFirstError bool
}

// NewValidator creates a Validator for the given configuration.
func NewValidator(cfg *config.MainConfig) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// ValidateAll validates a batch of purchases.
func (v *Validator) ValidateAll(purchases []types.Purchase) *ValidationResult {
	result := &ValidationResult{
		IsValid:   true,
		Purchases: make([]types.Purchase, 0, len(purchases)),
	}

	for i, purchase := range purchases {
		normalized, errs := v.Validate(i+1, purchase)
		result.Purchases = append(result.Purchases, normalized)

		for _, err := range errs {
			result.Errors = append(result.Errors, err)
			if err.Severity == SeverityError {
				result.ErrorCount++
				result.IsValid = false
				if v.StopOnFirstError {
					return result
				}
			} else {
				result.WarningCount++
			}
		}
	}

	return result
}

// Validate checks one purchase and returns its normalized form.
//
// PARAMETERS:
//   - record: The 1-based position of the purchase, used in errors.
//   - purchase: The purchase to check.
func (v *Validator) Validate(record int, purchase types.Purchase) (types.Purchase, []*ValidationError) {
	var errors []*ValidationError
	add := func(severity, field, value, rule, message string) {
		errors = append(errors, &ValidationError{
			Severity: severity,
			Record:   record,
			Field:    field,
			Value:    value,
			Rule:     rule,
			Message:  message,
		})
	}

	item := purchase.Item.Normalized()

	// =========================================================================
	// REQUIRED FIELDS
	// =========================================================================

	if purchase.Date.IsZero() {
		add(SeverityError, "date", "", "required", "Purchase date is missing")
	} else if purchase.Date.After(v.now()) {
		add(SeverityWarning, "date", purchase.Date.Format("2006-01-02"), "future", "Purchase date is in the future")
	}

	if item.Name == "" {
		add(SeverityError, "item", purchase.Item.Name, "required", "Item name is empty")
	}

	// =========================================================================
	// VENDOR
	// =========================================================================

	if msg := v.checkVendor(item.Vendor); msg != "" {
		add(SeverityError, "vendor", item.Vendor, "vendor", msg)
	}

	// =========================================================================
	// CATEGORY
	// =========================================================================

	if item.Category == "" {
		add(SeverityError, "category", "", "required", "Category is empty")
	} else if canonical, ok := v.cfg.Categories.Lookup(item.Category); ok {
		item.Category = canonical
	} else {
		add(SeverityError, "category", item.Category, "category",
			fmt.Sprintf("Unknown category (expected one of: %s)", strings.Join(v.cfg.Categories.Names, ", ")))
	}

	// =========================================================================
	// AMOUNTS
	// =========================================================================

	if !item.Quantity.IsPositive() {
		add(SeverityError, "quantity", item.Quantity.String(), "positive", "Quantity must be greater than zero")
	}
	if item.Cost.IsNegative() {
		add(SeverityError, "cost", item.Cost.String(), "non_negative", "Cost must not be negative")
	}
	if !item.PackageSize.IsPositive() {
		add(SeverityError, "package_size", item.PackageSize.String(), "positive", "Package size must be greater than zero")
	}

	// =========================================================================
	// UNITS
	// =========================================================================

	if item.Unit == "" {
		item.Unit = v.cfg.Categories.DefaultUnit
	}
	if item.PackageUnit == "" {
		item.PackageUnit = item.Unit
	}

	purchase.Item = item
	return purchase, errors
}

// checkVendor returns why a vendor name cannot be used, or "".
func (v *Validator) checkVendor(vendor string) string {
	switch {
	case vendor == "":
		return "Vendor is empty"
	case utf8.RuneCountInString(vendor) > maxSheetName:
		return fmt.Sprintf("Vendor name is longer than %d characters", maxSheetName)
	case strings.ContainsAny(vendor, `:\/?*[]`):
		return `Vendor name must not contain any of : \ / ? * [ ]`
	case strings.HasPrefix(vendor, "'") || strings.HasSuffix(vendor, "'"):
		return "Vendor name must not start or end with an apostrophe"
	case !v.cfg.IsVendorSheet(vendor):
		return "Vendor name is reserved for a category or system sheet"
	}
	return ""
}
