package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/aggregator"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/api"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/config"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage/postgres"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load(os.Getenv("HELPDESK_METRICS_CONFIG"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.NewWithOptions(logger.Options{
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
	}).WithComponent("api")

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageType {
	case "postgres":
		store, err = postgres.NewPostgresStorage(cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL storage: %w", err)
		}
	case "sqlite":
		store, err = sqlite.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	default:
		return fmt.Errorf("the API server needs storage, got STORAGE_TYPE=%s", cfg.StorageType)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := aggregator.NewAggregator(store)
	handler := api.NewHandler(store, agg)

	reg, datasetMetrics, err := newRegistry(store, agg, log)
	if err != nil {
		return err
	}
	go datasetMetrics.Run(ctx, cfg.MetricsRefreshInterval)

	router := api.SetupRoutes(handler, log, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).WithField("storage", cfg.StorageType).Info("starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRegistry builds the /metrics registry: runtime stats and dataset
// gauges. Collector counters belong to the CLI process, which exports them
// with --metrics-file.
func newRegistry(store storage.Storage, agg aggregator.Aggregator, log *logger.Logger) (*prometheus.Registry, *api.DatasetMetrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	datasetMetrics := api.NewDatasetMetrics(store, agg, log)
	if err := datasetMetrics.Register(reg); err != nil {
		return nil, nil, fmt.Errorf("failed to register dataset metrics: %w", err)
	}
	return reg, datasetMetrics, nil
}
