// =============================================================================
// Purchase Ledger - Batch File Parser
// =============================================================================
//
// This module reads batch purchase files for `ledger commit --batch`. A batch
// file is a CSV file with one purchase per row and a single header row:
//
//   date,vendor,item,brand,quantity,unit,cost,package_size,package_unit,category
//   2024-01-15,VendorA,Rice,Rojolele,2,sack,350000,25000,g,Fresh
//
// Header names are matched case-insensitively; spaces and dashes count as
// underscores, and a few short forms are accepted (qty, name, size).
// Columns may appear in any order. brand, unit and package_unit are optional.
//
// FEATURES:
//   - Configurable delimiter and date layouts (config.BatchSettings)
//   - windows-1252 / ISO-8859-1 exports from older spreadsheet programs
//   - Thousands separators in amounts ("350,000" with a ";" delimiter)
//   - Row errors carry the file line number
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
)

// Canonical column names.
const (
	ColDate        = "date"
	ColVendor      = "vendor"
	ColItem        = "item"
	ColBrand       = "brand"
	ColQuantity    = "quantity"
	ColUnit        = "unit"
	ColCost        = "cost"
	ColPackageSize = "package_size"
	ColPackageUnit = "package_unit"
	ColCategory    = "category"
)

// required columns must be present in the header.
var required = []string{ColDate, ColVendor, ColItem, ColQuantity, ColCost, ColPackageSize, ColCategory}

// aliases maps accepted header spellings to canonical column names.
var aliases = map[string]string{
	"name":     ColItem,
	"qty":      ColQuantity,
	"size":     ColPackageSize,
	"isi":      ColPackageSize,
	"isi_unit": ColPackageUnit,
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RowError describes a field that could not be parsed.
type RowError struct {
	// Line is the 1-based line number in the file.
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, column %s: %v (value: %q)", e.Line, e.Column, e.Err, e.Value)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BATCH DATA STRUCTURE
// =============================================================================

// Batch is a parsed batch file.
type Batch struct {
	// Purchases are the parsed rows, in file order.
	Purchases []types.Purchase

	// Lines holds the file line number of each purchase.
	Lines []int

	// Headers are the canonical column names, in file order.
	Headers []string

	// SourceFile is the path of the parsed file, if any.
	SourceFile string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a batch file.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter, encoding and date layouts.
//
// RETURNS:
//   - The parsed batch.
//   - An error if the file cannot be read, lacks a required column, or a
//     row cannot be parsed (*RowError).
func Parse(filePath string, settings config.BatchSettings) (*Batch, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	batch, err := ParseReader(file, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	batch.SourceFile = filePath
	return batch, nil
}

// ParseReader reads a batch from r.
func ParseReader(r io.Reader, settings config.BatchSettings) (*Batch, error) {
	decoded, err := decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}
	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), decoded.NewDecoder()))
	configureReader(csvReader, settings)

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	headers := cleanHeaders(header)
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	batch := &Batch{Headers: headers}
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line, _ := csvReader.FieldPos(0)
		if isRowEmpty(record) {
			continue
		}

		field := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		purchase, err := parseRow(field, line, settings.DateFormats)
		if err != nil {
			return nil, err
		}
		batch.Purchases = append(batch.Purchases, purchase)
		batch.Lines = append(batch.Lines, line)
	}

	return batch, nil
}

// parseRow converts one record to a purchase.
func parseRow(field func(string) string, line int, layouts []string) (types.Purchase, error) {
	date, err := ParseDate(field(ColDate), layouts)
	if err != nil {
		return types.Purchase{}, &RowError{Line: line, Column: ColDate, Value: field(ColDate), Err: err}
	}

	numbers := make(map[string]decimal.Decimal, 3)
	for _, col := range []string{ColQuantity, ColCost, ColPackageSize} {
		n, err := ParseAmount(field(col))
		if err != nil {
			return types.Purchase{}, &RowError{Line: line, Column: col, Value: field(col), Err: err}
		}
		numbers[col] = n
	}

	return types.Purchase{
		Date: date,
		Item: types.Item{
			Name:        field(ColItem),
			Vendor:      field(ColVendor),
			Brand:       field(ColBrand),
			Quantity:    numbers[ColQuantity],
			Unit:        field(ColUnit),
			Cost:        numbers[ColCost],
			PackageSize: numbers[ColPackageSize],
			PackageUnit: field(ColPackageUnit),
			Category:    field(ColCategory),
		},
	}, nil
}

// ParseDate reads a date with the first layout that matches.
func ParseDate(value string, layouts []string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	if len(layouts) == 0 {
		layouts = []string{"2006-01-02"}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date does not match any of %s", strings.Join(layouts, ", "))
}

// ParseAmount reads a decimal number. Thousands separators are dropped;
// a blank value is zero.
func ParseAmount(value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(value, ",", "")
	value = strings.ReplaceAll(value, "_", "")
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// =============================================================================
// READER CONFIGURATION
// =============================================================================

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.BatchSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Allow short rows; trailing optional columns are often left off.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// decoder returns the text encoding for an encoding name.
func decoder(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		// Strips a byte order mark written by spreadsheet exports.
		return unicode.UTF8BOM, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// cleanHeaders maps raw header values to canonical column names.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.ToLower(strings.TrimSpace(header))
		header = strings.NewReplacer(" ", "_", "-", "_").Replace(header)
		if canonical, ok := aliases[header]; ok {
			header = canonical
		}
		if header == "" {
			header = fmt.Sprintf("column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
