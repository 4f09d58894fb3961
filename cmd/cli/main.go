package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/config"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage/postgres"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage/sqlite"
)

var (
	cfgFile    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk-metrics",
	Short: "Helpdesk satisfaction metrics tool",
	Long: `A CLI tool for collecting customer satisfaction datasets from Zendesk.

This tool collects closed, rated tickets together with their lifecycle
metrics and comments, exports them as CSV or XLSX and stores them for
the read-only API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default .helpdesk-metrics.yaml)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(newCollectCmd())
	rootCmd.AddCommand(newShowCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if status, ok := apperrors.StatusCode(err); ok {
			fmt.Fprintf(os.Stderr, "Error (HTTP %d): %v\n", status, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger.NewWithOptions(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	})
	return cfg, log, nil
}

// getStorage opens the configured storage; nil when STORAGE_TYPE is none
func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "none":
		return nil, nil
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}
