package ledger

import (
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/purchase-ledger/internal/aggregate"
	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/internal/types"
	"github.com/ginjaninja78/purchase-ledger/internal/workbook"
	"github.com/ginjaninja78/purchase-ledger/pkg/utils"
)

// =============================================================================
// BATCH COMMIT
// =============================================================================

// CommitError identifies the purchase a batch commit stopped at.
type CommitError struct {
	// Index is the position of the purchase in the batch (0-based).
	Index int
	Item  types.Item
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed on %q from %s (record %d): %v", e.Item.Name, e.Item.Vendor, e.Index+1, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// CommitOptions configures a batch commit.
type CommitOptions struct {
	Config *config.MainConfig
	Logger *slog.Logger

	// SkipBackup disables the pre-commit backup copy.
	SkipBackup bool

	// OnCommitted is called after each purchase is saved.
	OnCommitted func(index int, purchase types.Purchase)
}

// CommitResult summarizes a batch commit.
type CommitResult struct {
	// Committed is the number of purchases saved, in batch order.
	Committed int

	// Backup is the backup copy made before the first write, if any.
	Backup string
}

// Commit writes a batch of purchases to the workbook at path, creating the
// workbook if it does not exist yet.
//
// PROCESS:
//  1. Back up the existing workbook
//  2. Open (or create) the workbook
//  3. Append each purchase in order; every purchase is saved on its own
//  4. Stop at the first failure
//
// RETURNS:
//   - The result; Committed counts the purchases saved before a failure.
//   - A *CommitError naming the failing purchase, or a file-level error.
func Commit(path string, purchases []types.Purchase, opts CommitOptions) (CommitResult, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var result CommitResult
	if !opts.SkipBackup {
		backup, err := utils.NewFileManager(path, cfg.BackupExtension).Backup()
		if err != nil {
			return result, err
		}
		result.Backup = backup
		if backup != "" {
			logger.Info("Saved backup", "path", backup)
		}
	}

	wb, err := workbook.OpenOrCreate(path)
	if err != nil {
		return result, err
	}
	defer wb.Close()

	maintainer := aggregate.New(wb, aggregate.SettingsFor(cfg), logger)
	writer := NewWriter(wb, maintainer, SettingsFor(cfg), logger)

	for i, purchase := range purchases {
		if err := writer.Append(purchase.Item.Vendor, purchase.Item, purchase.Date); err != nil {
			logger.Error("Commit stopped", "record", i+1, "item", purchase.Item.Name, "error", err)
			return result, &CommitError{Index: i, Item: purchase.Item, Err: err}
		}
		result.Committed++
		if opts.OnCommitted != nil {
			opts.OnCommitted(i, purchase)
		}
	}

	logger.Info("Commit finished", "records", result.Committed)
	return result, nil
}
