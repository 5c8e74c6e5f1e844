// =============================================================================
// Purchase Ledger - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// (commit, reinit, import, config, version) is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (ledger)
//   ├── commitCmd  (ledger commit)
//   ├── reinitCmd  (ledger reinit)
//   ├── importCmd  (ledger import)
//   ├── configCmd  (ledger config init | check)
//   └── versionCmd (ledger version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the YAML configuration (--config, default ledger.yaml)
//   2. Applies flag and LEDGER_* environment overrides through viper
//   3. Sets up logging (stderr, plus the per-user _LOG file when enabled)
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/purchase-ledger/internal/config"
	"github.com/ginjaninja78/purchase-ledger/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// appConfig is the configuration loaded by initConfig.
var appConfig *config.MainConfig

// logger is the run logger. It carries the run_id attribute.
var logger = slog.Default()

// runID identifies this invocation in the logs and failure files.
var runID string

// logFile is the per-user log file, when one is open.
var logFile io.Closer

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Purchase ledger - vendor purchases and category price aggregates in one workbook",
	Long: `ledger records purchases into a spreadsheet workbook: one sheet per vendor
holds the raw purchase rows, and one sheet per category keeps, for every item,
the moving average and the maximum price per package unit across all vendors
that stock it.

Example Usage:
  ledger commit --vendor "Toko Makmur" --item Rice --quantity 2 --unit sack \
      --cost 500000 --package-size 25000 --package-unit g --category Fresh
  ledger commit --batch purchases.csv    # Commit a CSV batch, in order
  ledger reinit                          # Rebuild every category sheet
  ledger import "Pembelian 2020.xlsx"    # Carry items over from an older workbook`,

	SilenceUsage:       true,
	PersistentPreRunE:  initConfig,
	PersistentPostRunE: closeLog,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", config.DefaultPath, "Path to the configuration file")
	flags.String("workbook", "", "Path to the purchasing workbook (overrides the config file)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (console, json)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")

	_ = viper.BindPFlag("workbook", flags.Lookup("workbook"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
}

// initConfig loads the configuration file and applies overrides.
func initConfig(cmd *cobra.Command, _ []string) error {
	// config init writes the file, it must not require one.
	if cmd.Annotations["skipConfig"] == "true" {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	viper.SetEnvPrefix("LEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	applyOverrides(cfg)
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appConfig = cfg

	return setupLogging(cfg)
}

// applyOverrides copies flag and environment values over the file values.
// Unset keys leave the file value alone.
func applyOverrides(cfg *config.MainConfig) {
	for key, field := range map[string]*string{
		"workbook":   &cfg.Workbook,
		"log_level":  &cfg.LogLevel,
		"log_format": &cfg.LogFormat,
	} {
		if value := strings.TrimSpace(viper.GetString(key)); value != "" {
			*field = value
		}
	}
}

// =============================================================================
// LOGGING
// =============================================================================

// setupLogging installs the default slog logger and the run logger.
func setupLogging(cfg *config.MainConfig) error {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if cfg.LogToWorkbookDir && cfg.Workbook != "" {
		file, err := utils.NewFileManager(cfg.Workbook, cfg.BackupExtension).OpenUserLog("ledger")
		if err != nil {
			return err
		}
		logFile = file
		out = io.MultiWriter(os.Stderr, file)
	}

	handler, err := newHandler(out, cfg.LogFormat, level)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(handler))
	runID = uuid.New().String()
	logger = slog.Default().With("run_id", runID)
	return nil
}

// parseLevel maps a level name to a slog level.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}

// newHandler creates the handler for a log format.
func newHandler(out io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "console", "":
		return slog.NewTextHandler(out, opts), nil
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}

func closeLog(_ *cobra.Command, _ []string) error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// errNoWorkbook is returned when neither the config nor --workbook names a
// workbook.
var errNoWorkbook = errors.New("no workbook configured (set workbook in the config file or pass --workbook)")

// workbookPath returns the configured workbook path.
func workbookPath() (string, error) {
	if appConfig == nil || strings.TrimSpace(appConfig.Workbook) == "" {
		return "", errNoWorkbook
	}
	return appConfig.Workbook, nil
}
