// =============================================================================
// Purchase Ledger - File Manager Utility
// =============================================================================
//
// This module provides the file handling around the workbook:
//   - Pre-operation backup copies (the only recovery path after a bad save)
//   - The _LOG directory next to the workbook
//   - Per-user log files and failure logs inside it
//
// LAYOUT:
//   purchasing.xlsx
//   purchasing.bak                       backup (extension configurable)
//   _LOG/
//     ani_ledger_2024-01-15.log          per-user operation log
//     reinit_errors_20240115_143022.txt  per-item failures of one run
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogDirName is the name of the log directory created next to the workbook.
const LogDirName = "_LOG"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles the files that live next to one workbook.
type FileManager struct {
	// WorkbookPath is the workbook the manager looks after.
	WorkbookPath string

	// BackupExtension replaces the workbook extension on backup copies.
	// Example: ".bak" turns purchasing.xlsx into purchasing.bak
	BackupExtension string

	// LogDir is where log files are written.
	LogDir string
}

// NewFileManager creates a FileManager for the workbook at workbookPath.
func NewFileManager(workbookPath, backupExtension string) *FileManager {
	if backupExtension == "" {
		backupExtension = ".bak"
	}
	if !strings.HasPrefix(backupExtension, ".") {
		backupExtension = "." + backupExtension
	}
	return &FileManager{
		WorkbookPath:    workbookPath,
		BackupExtension: backupExtension,
		LogDir:          filepath.Join(filepath.Dir(workbookPath), LogDirName),
	}
}

// =============================================================================
// BACKUP
// =============================================================================

// BackupPath returns where the backup copy of the workbook goes.
func (fm *FileManager) BackupPath() string {
	ext := filepath.Ext(fm.WorkbookPath)
	return strings.TrimSuffix(fm.WorkbookPath, ext) + fm.BackupExtension
}

// Backup copies the workbook to its backup path, replacing any older backup.
//
// RETURNS:
//   - The backup path, or "" when there is no workbook to back up yet.
//   - An error if the copy fails.
func (fm *FileManager) Backup() (string, error) {
	if !FileExists(fm.WorkbookPath) {
		return "", nil
	}
	dest := fm.BackupPath()
	if err := copyFile(fm.WorkbookPath, dest); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", fm.WorkbookPath, err)
	}
	return dest, nil
}

// =============================================================================
// LOG FILES
// =============================================================================

// EnsureLogDir creates the log directory if it doesn't exist.
func (fm *FileManager) EnsureLogDir() error {
	if err := os.MkdirAll(fm.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", fm.LogDir, err)
	}
	return nil
}

// OpenUserLog opens (for appending) today's log file of the current user:
// _LOG/<user>_<name>_<YYYY-MM-DD>.log
//
// The caller must close the returned file.
func (fm *FileManager) OpenUserLog(name string) (*os.File, error) {
	if err := fm.EnsureLogDir(); err != nil {
		return nil, err
	}
	fileName := fmt.Sprintf("%s_%s_%s.log", currentUser(), name, time.Now().Format("2006-01-02"))
	path := filepath.Join(fm.LogDir, fileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}

// currentUser returns a file-name safe user name.
func currentUser() string {
	name := os.Getenv("USER")
	if name == "" {
		name = os.Getenv("USERNAME")
	}
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	if name == "" {
		return "unknown"
	}
	// Windows accounts come as DOMAIN\user.
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	Sheet        string
	RowNumber    int
	ItemName     string
	ErrorType    string
	ErrorMessage string
}

// WriteErrorLog writes error entries to <LogDir>/<prefix>_<timestamp>.txt.
//
// PARAMETERS:
//   - prefix: The log file name prefix (e.g., "reinit_errors").
//   - runID: Identifies the run in the log header. A new one is generated
//     when empty.
//   - entries: The error entries to write.
//
// RETURNS:
//   - The path to the error log file, or "" when there is nothing to log.
//   - An error if writing fails.
func (fm *FileManager) WriteErrorLog(prefix, runID string, entries []ErrorLogEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if err := fm.EnsureLogDir(); err != nil {
		return "", err
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(fm.LogDir, fmt.Sprintf("%s_%s.txt", prefix, timestamp))

	file, err := os.Create(logPath)
	if err != nil {
		return "", fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "Purchase Ledger - Error Log\n"+
		"Workbook:  %s\n"+
		"Run ID:    %s\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		fm.WorkbookPath,
		runID,
		time.Now().Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n", i+1)
		if !entry.Timestamp.IsZero() {
			fmt.Fprintf(writer, "  Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05"))
		}
		if entry.Sheet != "" {
			fmt.Fprintf(writer, "  Sheet:      %s\n", entry.Sheet)
		}
		if entry.RowNumber > 0 {
			fmt.Fprintf(writer, "  Row Number: %d\n", entry.RowNumber)
		}
		if entry.ItemName != "" {
			fmt.Fprintf(writer, "  Item:       %s\n", entry.ItemName)
		}
		if entry.ErrorType != "" {
			fmt.Fprintf(writer, "  Error Type: %s\n", entry.ErrorType)
		}
		fmt.Fprintf(writer, "  Message:    %s\n\n", entry.ErrorMessage)
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
