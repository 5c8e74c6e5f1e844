// =============================================================================
// Purchase Ledger - Commit Command
// =============================================================================
//
// This file defines the 'commit' command, which records purchases.
//
// COMMAND USAGE:
//   ledger commit --vendor V --item NAME --quantity N --cost C \
//       --package-size S [--unit U] [--package-unit P] [--brand B] \
//       [--category CAT] [--date DATE]
//   ledger commit --batch purchases.csv
//
// PROCESS:
//   1. Read the purchase(s) from the flags or the batch file
//   2. Validate every record (nothing is written if any record is invalid)
//   3. Back up the workbook
//   4. Append each record to its vendor sheet, update the category sheet
//      and save, in order; stop at the first failure
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/csvparser"
	"github.com/ginjaninja78/purchase-ledger/internal/ledger"
	"github.com/ginjaninja78/purchase-ledger/internal/status"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/validation"
)

// commitFlags holds the single-record flags.
type commitFlags struct {
	batch       string
	noBackup    bool
	date        string
	vendor      string
	item        string
	brand       string
	quantity    string
	unit        string
	cost        string
	packageSize string
	packageUnit string
	category    string
}

var commitOpts commitFlags

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Record purchases in the workbook",
	Long: `Record one purchase given by flags, or a batch of purchases from a CSV file.

Each purchase is appended to its vendor sheet (created if needed) and the
item's row on its category sheet is created or extended so the average and
maximum unit price formulas cover the vendor. A batch is committed in file
order and stops at the first purchase that cannot be written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommit(cmd, commitOpts)
	},
}

func init() {
	flags := commitCmd.Flags()
	flags.StringVar(&commitOpts.batch, "batch", "", "CSV file with one purchase per row")
	flags.BoolVar(&commitOpts.noBackup, "no-backup", false, "Do not copy the workbook before writing")
	flags.StringVar(&commitOpts.date, "date", "", "Purchase date (default today)")
	flags.StringVar(&commitOpts.vendor, "vendor", "", "Vendor sheet name")
	flags.StringVar(&commitOpts.item, "item", "", "Item name")
	flags.StringVar(&commitOpts.brand, "brand", "", "Brand")
	flags.StringVar(&commitOpts.quantity, "quantity", "", "Number of purchase units bought")
	flags.StringVar(&commitOpts.unit, "unit", "", "Purchase unit (e.g. sack)")
	flags.StringVar(&commitOpts.cost, "cost", "", "Price paid per purchase unit")
	flags.StringVar(&commitOpts.packageSize, "package-size", "", "Package units per purchase unit (e.g. 25000)")
	flags.StringVar(&commitOpts.packageUnit, "package-unit", "", "Package unit (e.g. g)")
	flags.StringVar(&commitOpts.category, "category", "", "Category (default: the configured fallback)")

	rootCmd.AddCommand(commitCmd)
}

// runCommit executes the commit command.
func runCommit(cmd *cobra.Command, opts commitFlags) error {
	report := status.New(cmd.OutOrStdout())
	report.Working()

	path, err := workbookPath()
	if err != nil {
		return report.Failed("commit", err)
	}

	purchases, err := readPurchases(appConfig, opts, time.Now())
	if err != nil {
		return report.Failed("commit", err)
	}

	result := validation.NewValidator(appConfig).ValidateAll(purchases)
	for _, verr := range result.Errors {
		report.Note("%s", verr.Error())
	}
	if !result.IsValid {
		return report.Failed("commit", fmt.Errorf("%d record(s) failed validation", result.ErrorCount))
	}

	committed, err := ledger.Commit(path, result.Purchases, ledger.CommitOptions{
		Config:     appConfig,
		Logger:     logger,
		SkipBackup: opts.noBackup,
		OnCommitted: func(index int, purchase types.Purchase) {
			logger.Debug("Committed", "record", index+1, "vendor", purchase.Item.Vendor, "item", purchase.Item.Name)
		},
	})
	if committed.Backup != "" {
		report.Note("Backup: %s", committed.Backup)
	}
	if err != nil {
		report.Note("%d of %d record(s) committed", committed.Committed, len(result.Purchases))
		return report.Failed("commit", err)
	}

	report.Note("%d record(s) committed to %s", committed.Committed, path)
	report.Done()
	return nil
}

// readPurchases returns the batch file's purchases, or the single purchase
// described by the flags.
func readPurchases(cfg *config.MainConfig, opts commitFlags, now time.Time) ([]types.Purchase, error) {
	if opts.batch != "" {
		batch, err := csvparser.Parse(opts.batch, cfg.Batch)
		if err != nil {
			return nil, err
		}
		if len(batch.Purchases) == 0 {
			return nil, fmt.Errorf("%s has no purchases", opts.batch)
		}
		return batch.Purchases, nil
	}

	purchase, err := purchaseFromFlags(cfg, opts, now)
	if err != nil {
		return nil, err
	}
	return []types.Purchase{purchase}, nil
}

// purchaseFromFlags builds a purchase from the single-record flags.
// A missing date means today; a missing category means the fallback.
func purchaseFromFlags(cfg *config.MainConfig, opts commitFlags, now time.Time) (types.Purchase, error) {
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if strings.TrimSpace(opts.date) != "" {
		parsed, err := csvparser.ParseDate(strings.TrimSpace(opts.date), cfg.Batch.DateFormats)
		if err != nil {
			return types.Purchase{}, fmt.Errorf("--date: %w", err)
		}
		date = parsed
	}

	item := types.Item{
		Name:        opts.item,
		Vendor:      opts.vendor,
		Brand:       opts.brand,
		Unit:        opts.unit,
		PackageUnit: opts.packageUnit,
		Category:    opts.category,
	}
	if strings.TrimSpace(item.Category) == "" {
		item.Category = cfg.Categories.Fallback
	}

	for _, amount := range []struct {
		flag  string
		value string
		field *decimal.Decimal
	}{
		{"--quantity", opts.quantity, &item.Quantity},
		{"--cost", opts.cost, &item.Cost},
		{"--package-size", opts.packageSize, &item.PackageSize},
	} {
		n, err := csvparser.ParseAmount(strings.TrimSpace(amount.value))
		if err != nil {
			return types.Purchase{}, fmt.Errorf("%s: %w", amount.flag, err)
		}
		*amount.field = n
	}

	return types.Purchase{Date: date, Item: item}, nil
}
