package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gridcrawl/internal/config"
)

var (
	// Global flags
	configPath string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gridcrawl",
	Short: "Polite, resumable crawler for sim racing league results",
	Long: `gridcrawl materializes a racing league's public site hierarchy
(league, series, seasons, races, results, drivers) into a local SQLite
database. It rate-limits every outbound request through a single shared
gate, caches by freshness so re-runs only touch what changed, and never
refetches a completed race.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		// CLI flags win over the config file.
		if dbPath != "" {
			cfg.Database.Path = dbPath
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		zc := zap.NewProductionConfig()
		switch strings.ToUpper(cfg.Logging.LevelOrDefault()) {
		case "DEBUG":
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		case "WARNING", "WARN":
			zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		case "ERROR":
			zc.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: DEBUG, INFO, WARNING or ERROR")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
