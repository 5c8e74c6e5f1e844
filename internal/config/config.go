// =============================================================================
// Purchase Ledger - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the ledger configuration.
// A single YAML file carries three groups of settings:
//
//   1. Main settings: workbook path, backup extension, logging, sheet names
//   2. Category settings: the ordered category list, the miscellaneous
//      sheet names, the fallback category and unit, and the correction table
//   3. Column layout: which vendor sheet column holds which purchase field
//
// Together the category list and the miscellaneous list form the skip-list
// that separates vendor sheets from every other sheet in the workbook.
//
// EXAMPLE (ledger.yaml):
//
//   workbook: ./Pembelian 2021.xlsx
//   formula_mode: per_vendor
//   categories:
//     names: [Fresh, Sundries, Packaging, Utensils]
//     misc: [LIST, ITEM LIST]
//     fallback: Fresh
//     default_unit: g
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// FormulaPerVendor writes one SUMIF/COUNTIF pair per vendor sheet that
	// stocks the item. The vendor list is regenerated on every change.
	FormulaPerVendor = "per_vendor"

	// FormulaNamedRange writes a single SUMPRODUCT/INDIRECT formula over the
	// workbook-wide vendor named range.
	FormulaNamedRange = "named_range"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "ledger.yaml"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the complete ledger configuration.
type MainConfig struct {
	// =========================================================================
	// WORKBOOK SETTINGS
	// =========================================================================

	// Workbook is the path to the purchasing workbook (.xlsx).
	Workbook string `yaml:"workbook"`

	// BackupExtension is the extension of the sibling backup copy written
	// before every mutating operation.
	// Default: ".bak"
	BackupExtension string `yaml:"backup_extension"`

	// StagingSheet is the sheet that receives rows imported from an older
	// workbook. It is scanned like any other vendor sheet.
	// Default: "_IMPORT_"
	StagingSheet string `yaml:"staging_sheet"`

	// DataSheet is the hidden sheet that lists every vendor sheet name.
	// Default: "DATA"
	DataSheet string `yaml:"data_sheet"`

	// VendorRange is the workbook-scoped defined name that points at the
	// vendor list on the data sheet.
	// Default: "Vendors"
	VendorRange string `yaml:"vendor_range"`

	// FormulaMode selects the aggregate formula template.
	// Valid values: "per_vendor", "named_range"
	// Default: "per_vendor"
	FormulaMode string `yaml:"formula_mode"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the slog handler.
	// Valid values: "console", "json"
	// Default: "console"
	LogFormat string `yaml:"log_format"`

	// LogToWorkbookDir additionally writes the log to a per-user file in a
	// _LOG directory next to the workbook.
	LogToWorkbookDir bool `yaml:"log_to_workbook_dir"`

	// =========================================================================
	// DOMAIN SETTINGS
	// =========================================================================

	// Categories is the category configuration.
	Categories CategoryConfig `yaml:"categories"`

	// Columns is the vendor sheet column layout.
	Columns Columns `yaml:"columns"`

	// Batch controls how batch purchase files are read.
	Batch BatchSettings `yaml:"batch"`
}

// =============================================================================
// BATCH FILE SETTINGS
// =============================================================================

// BatchSettings describes the CSV files accepted by `ledger commit --batch`.
type BatchSettings struct {
	// Delimiter is the field separator.
	// Common values: ",", ";", "tab", "|"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Valid values: "UTF-8", "windows-1252", "ISO-8859-1"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// DateFormats are the Go time layouts tried, in order, for the date
	// column.
	// Default: ["2006-01-02", "02-Jan-06", "02/01/2006"]
	DateFormats []string `yaml:"date_formats"`
}

// =============================================================================
// CATEGORY CONFIGURATION STRUCTURE
// =============================================================================

// CategoryConfig is the ordered category list plus the sheets that are
// neither categories nor vendors.
type CategoryConfig struct {
	// Names is the ordered list of category names. Each category has its own
	// aggregate sheet.
	Names []string `yaml:"names"`

	// Misc lists sheet names that are not vendors and not categories.
	Misc []string `yaml:"misc"`

	// Fallback is the category used when a row has no category label.
	// Default: "Fresh"
	Fallback string `yaml:"fallback"`

	// DefaultUnit is the unit used when a row has neither a package unit
	// nor a purchase unit.
	// Default: "g"
	DefaultUnit string `yaml:"default_unit"`

	// Corrections maps known misspellings and synonyms to a configured
	// category name. Keys are matched case-insensitively.
	Corrections map[string]string `yaml:"corrections"`
}

// Columns maps each purchase field to its vendor sheet column letter.
type Columns struct {
	Date        string `yaml:"date"`
	Name        string `yaml:"name"`
	Brand       string `yaml:"brand"`
	Quantity    string `yaml:"quantity"`
	Unit        string `yaml:"unit"`
	Cost        string `yaml:"cost"`
	Total       string `yaml:"total"`
	PackageSize string `yaml:"package_size"`
	PackageUnit string `yaml:"package_unit"`
	UnitPrice   string `yaml:"unit_price"`
	Category    string `yaml:"category"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultColumns returns the fixed eleven-column vendor layout:
// date, name, brand, quantity, unit, cost, total, package size,
// package unit, unit price, category.
func DefaultColumns() Columns {
	return Columns{
		Date:        "A",
		Name:        "B",
		Brand:       "C",
		Quantity:    "D",
		Unit:        "E",
		Cost:        "F",
		Total:       "G",
		PackageSize: "H",
		PackageUnit: "I",
		UnitPrice:   "J",
		Category:    "K",
	}
}

// DefaultCategories returns the category configuration shipped with the
// application.
func DefaultCategories() CategoryConfig {
	return CategoryConfig{
		Names: []string{
			"Fresh",
			"Sundries",
			"Packaging",
			"Utensils",
			"Appliances",
			"Cleaning",
			"Stationary",
			"Advertising",
			"Utility",
			"Storage",
		},
		Misc:        []string{"LIST", "ITEM LIST"},
		Fallback:    "Fresh",
		DefaultUnit: "g",
		Corrections: map[string]string{
			"utensil":    "Utensils",
			"packing":    "Packaging",
			"package":    "Packaging",
			"sundry":     "Sundries",
			"stationery": "Stationary",
			"appliance":  "Appliances",
			"utilities":  "Utility",
			"advert":     "Advertising",
			"clean":      "Cleaning",
		},
	}
}

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	cfg := &MainConfig{Categories: DefaultCategories()}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *MainConfig) {
	if cfg.BackupExtension == "" {
		cfg.BackupExtension = ".bak"
	}
	if !strings.HasPrefix(cfg.BackupExtension, ".") {
		cfg.BackupExtension = "." + cfg.BackupExtension
	}
	if cfg.StagingSheet == "" {
		cfg.StagingSheet = "_IMPORT_"
	}
	if cfg.DataSheet == "" {
		cfg.DataSheet = "DATA"
	}
	if cfg.VendorRange == "" {
		cfg.VendorRange = "Vendors"
	}
	if cfg.FormulaMode == "" {
		cfg.FormulaMode = FormulaPerVendor
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}

	if cfg.Batch.Delimiter == "" {
		cfg.Batch.Delimiter = ","
	}
	if cfg.Batch.Encoding == "" {
		cfg.Batch.Encoding = "UTF-8"
	}
	if len(cfg.Batch.DateFormats) == 0 {
		cfg.Batch.DateFormats = []string{"2006-01-02", "02-Jan-06", "02/01/2006"}
	}

	// The default fallback and corrections name default categories, so they
	// only apply together with the default list.
	defaults := DefaultCategories()
	ownList := len(cfg.Categories.Names) > 0
	if !ownList {
		cfg.Categories.Names = defaults.Names
	}
	if cfg.Categories.Misc == nil {
		cfg.Categories.Misc = defaults.Misc
	}
	if cfg.Categories.Fallback == "" {
		cfg.Categories.Fallback = defaults.Fallback
		if ownList {
			cfg.Categories.Fallback = cfg.Categories.Names[0]
		}
	}
	if cfg.Categories.DefaultUnit == "" {
		cfg.Categories.DefaultUnit = defaults.DefaultUnit
	}
	if cfg.Categories.Corrections == nil {
		cfg.Categories.Corrections = map[string]string{}
		if !ownList {
			cfg.Categories.Corrections = defaults.Corrections
		}
	}

	// Column defaults are applied per field so a file can move one column
	// without restating the whole layout.
	cols, def := &cfg.Columns, DefaultColumns()
	for _, pair := range []struct {
		field *string
		value string
	}{
		{&cols.Date, def.Date},
		{&cols.Name, def.Name},
		{&cols.Brand, def.Brand},
		{&cols.Quantity, def.Quantity},
		{&cols.Unit, def.Unit},
		{&cols.Cost, def.Cost},
		{&cols.Total, def.Total},
		{&cols.PackageSize, def.PackageSize},
		{&cols.PackageUnit, def.PackageUnit},
		{&cols.UnitPrice, def.UnitPrice},
		{&cols.Category, def.Category},
	} {
		if *pair.field == "" {
			*pair.field = pair.value
		} else {
			*pair.field = strings.ToUpper(strings.TrimSpace(*pair.field))
		}
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct. A missing file yields the defaults.
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg MainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Write stores the configuration as YAML. Existing files are not replaced.
func (c *MainConfig) Write(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	file, err := os.OpenFile(configPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for contradictions.
func (c *MainConfig) Validate() error {
	if len(c.Categories.Names) == 0 {
		return fmt.Errorf("at least one category is required")
	}

	seen := make(map[string]bool)
	for _, name := range c.Categories.Names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return fmt.Errorf("category names cannot be blank")
		}
		if seen[key] {
			return fmt.Errorf("category %q is listed twice", name)
		}
		seen[key] = true
	}
	for _, misc := range c.Categories.Misc {
		if seen[strings.ToLower(strings.TrimSpace(misc))] {
			return fmt.Errorf("sheet %q is both a category and a misc sheet", misc)
		}
	}

	if _, ok := c.Categories.Lookup(c.Categories.Fallback); !ok {
		return fmt.Errorf("fallback category %q is not a configured category", c.Categories.Fallback)
	}
	for variant, target := range c.Categories.Corrections {
		if _, ok := c.Categories.Lookup(target); !ok {
			return fmt.Errorf("correction %q maps to unknown category %q", variant, target)
		}
	}

	switch c.FormulaMode {
	case FormulaPerVendor, FormulaNamedRange:
	default:
		return fmt.Errorf("unknown formula mode %q", c.FormulaMode)
	}

	return c.Columns.validate()
}

// validate ensures every column is a real column letter and no two fields
// share a column.
func (c Columns) validate() error {
	used := make(map[string]string)
	for field, col := range c.byField() {
		if _, err := excelize.ColumnNameToNumber(col); err != nil {
			return fmt.Errorf("column for %s: %w", field, err)
		}
		if other, ok := used[col]; ok {
			return fmt.Errorf("column %s is used by both %s and %s", col, other, field)
		}
		used[col] = field
	}
	return nil
}

func (c Columns) byField() map[string]string {
	return map[string]string{
		"date":         c.Date,
		"name":         c.Name,
		"brand":        c.Brand,
		"quantity":     c.Quantity,
		"unit":         c.Unit,
		"cost":         c.Cost,
		"total":        c.Total,
		"package_size": c.PackageSize,
		"package_unit": c.PackageUnit,
		"unit_price":   c.UnitPrice,
		"category":     c.Category,
	}
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================

// Lookup returns the configured spelling of a category name, matched
// case-insensitively.
func (c CategoryConfig) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, configured := range c.Names {
		if strings.EqualFold(configured, name) {
			return configured, true
		}
	}
	return "", false
}

// SkipList returns every sheet name that must not be scanned as a vendor:
// the categories followed by the miscellaneous sheets.
func (c CategoryConfig) SkipList() []string {
	list := make([]string, 0, len(c.Names)+len(c.Misc))
	list = append(list, c.Names...)
	return append(list, c.Misc...)
}

// IsVendorSheet reports whether a sheet holds vendor purchases. Category,
// miscellaneous and data sheets are excluded. Sheet names compare
// case-insensitively, like the spreadsheet application does.
func (c *MainConfig) IsVendorSheet(sheet string) bool {
	if strings.TrimSpace(sheet) == "" || strings.EqualFold(sheet, c.DataSheet) {
		return false
	}
	for _, skip := range c.Categories.SkipList() {
		if strings.EqualFold(skip, sheet) {
			return false
		}
	}
	return true
}
