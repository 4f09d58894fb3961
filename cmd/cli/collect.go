package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/collector"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/config"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/dataset"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/export"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/session"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
)

var (
	exportFormat string
	idsFrom      string
	idsFlag      string
	metricsFile  string
)

func newCollectCmd() *cobra.Command {
	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect datasets from Zendesk",
	}
	collectCmd.PersistentFlags().StringVar(&exportFormat, "format", "", "export format: csv or xlsx (default from config)")
	collectCmd.PersistentFlags().StringVar(&idsFrom, "ids-from", "", "CSV or XLSX file with an id column selecting the tickets")
	collectCmd.PersistentFlags().StringVar(&idsFlag, "ids", "", "comma separated ticket ids")
	collectCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write collector counters to this file in Prometheus text format")

	collectCmd.AddCommand(&cobra.Command{
		Use:   "tickets",
		Short: "Collect closed, rated tickets",
		RunE: withCollection(func(ctx context.Context, r *runner) error {
			_, err := r.tickets(ctx)
			return err
		}),
	})
	collectCmd.AddCommand(&cobra.Command{
		Use:   "metrics",
		Short: "Collect lifecycle metrics for tickets",
		RunE: withCollection(func(ctx context.Context, r *runner) error {
			ids, err := r.ticketIDs(ctx)
			if err != nil {
				return err
			}
			return r.metrics(ctx, ids)
		}),
	})
	collectCmd.AddCommand(&cobra.Command{
		Use:   "comments",
		Short: "Collect comments for tickets",
		RunE: withCollection(func(ctx context.Context, r *runner) error {
			ids, err := r.ticketIDs(ctx)
			if err != nil {
				return err
			}
			return r.comments(ctx, ids)
		}),
	})
	collectCmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Collect tickets, then their metrics and comments",
		RunE: withCollection(func(ctx context.Context, r *runner) error {
			return r.all(ctx)
		}),
	})
	return collectCmd
}

// withCollection builds a runner from the loaded config and hands it to fn
func withCollection(fn func(ctx context.Context, r *runner) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateCollector(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if exportFormat != "" {
			cfg.ExportFormat = exportFormat
		}
		format, err := export.ParseFormat(cfg.ExportFormat)
		if err != nil {
			return err
		}

		st, err := getStorage(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		if st != nil {
			defer st.Close()
		}

		provider := &session.PromptProvider{Env: session.EnvProvider{Email: cfg.ZendeskEmail}}
		r := &runner{
			cfg:       cfg,
			log:       log.WithComponent("cli"),
			store:     st,
			collector: newCollector(cfg, log, provider),
			format:    format,
			out:       cmd.OutOrStdout(),
			idsFrom:   idsFrom,
			ids:       idsFlag,
		}
		err = fn(cmd.Context(), r)
		if metricsFile != "" {
			if werr := writeMetricsFile(metricsFile); werr != nil {
				log.WithError(werr).Warn("failed to write metrics file")
			}
		}
		return err
	}
}

// writeMetricsFile dumps the collector counters for a node exporter
// textfile collector
func writeMetricsFile(path string) error {
	reg := prometheus.NewRegistry()
	if err := collector.RegisterMetrics(reg); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}

func newCollector(cfg *config.Config, log *logger.Logger, provider session.Provider, fetcherOpts ...collector.FetcherOption) collector.Collector {
	return collector.NewZendeskCollector(collector.Options{
		BaseURL:        cfg.ZendeskURL,
		PageSize:       cfg.SearchPageSize,
		Throttle:       cfg.Throttle,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	}, provider, fetcherOpts...)
}

// runner drives one or more collection runs and persists their results
type runner struct {
	cfg       *config.Config
	log       *logger.Logger
	store     storage.Storage // nil when storage is disabled
	collector collector.Collector
	format    export.Format
	out       io.Writer
	idsFrom   string
	ids       string
}

func (r *runner) tickets(ctx context.Context) (*dataset.Table[domain.TicketSummary], error) {
	var save func(context.Context, []domain.TicketSummary) error
	if r.store != nil {
		save = r.store.SaveTickets
	}
	return collect(ctx, r, domain.DatasetTickets, r.collector.CollectTickets, save)
}

func (r *runner) metrics(ctx context.Context, ids []int64) error {
	var save func(context.Context, []domain.TicketMetrics) error
	if r.store != nil {
		save = r.store.SaveMetrics
	}
	_, err := collect(ctx, r, domain.DatasetMetrics,
		func(ctx context.Context, cb collector.ProgressCallback) (*dataset.Table[domain.TicketMetrics], error) {
			return r.collector.CollectMetrics(ctx, ids, cb)
		}, save)
	return err
}

func (r *runner) comments(ctx context.Context, ids []int64) error {
	var save func(context.Context, []domain.TicketComment) error
	if r.store != nil {
		save = r.store.SaveComments
	}
	_, err := collect(ctx, r, domain.DatasetComments,
		func(ctx context.Context, cb collector.ProgressCallback) (*dataset.Table[domain.TicketComment], error) {
			return r.collector.CollectComments(ctx, ids, cb)
		}, save)
	return err
}

func (r *runner) all(ctx context.Context) error {
	tickets, err := r.tickets(ctx)
	if err != nil {
		return err
	}
	ids := domain.TicketIDs(tickets.Rows)
	if err := r.metrics(ctx, ids); err != nil {
		return err
	}
	return r.comments(ctx, ids)
}

// ticketIDs resolves the tickets to enrich: --ids, then --ids-from, then
// the stored tickets, then the last tickets export.
func (r *runner) ticketIDs(ctx context.Context) ([]int64, error) {
	if r.ids != "" {
		return parseIDList(r.ids)
	}
	if r.idsFrom != "" {
		return export.ReadTicketIDs(r.idsFrom)
	}
	if r.store != nil {
		ids, err := r.store.GetTicketIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load ticket ids: %w", err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	path := export.Path(r.cfg.OutputDir, domain.DatasetTickets, r.format)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no ticket ids: run 'collect tickets' first or pass --ids/--ids-from")
	}
	return export.ReadTicketIDs(path)
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid ticket id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// collect runs one collection, records it, exports the table and saves the
// rows. A failed run leaves no partial export or rows behind.
func collect[R domain.Record](
	ctx context.Context,
	r *runner,
	kind domain.DatasetKind,
	fetch func(context.Context, collector.ProgressCallback) (*dataset.Table[R], error),
	save func(context.Context, []R) error,
) (*dataset.Table[R], error) {
	started := time.Now().UTC()
	run := &domain.CollectionRun{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    domain.RunInProgress,
		StartedAt: started,
	}
	r.saveRun(ctx, run)

	fmt.Fprintf(r.out, "Collecting %s...\n", kind)
	table, err := fetch(ctx, r.progress(kind))
	fmt.Fprintln(r.out)
	if err == nil {
		err = persist(ctx, r, kind, table, save)
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = domain.RunFailed
		run.Error = err.Error()
		r.saveRun(context.WithoutCancel(ctx), run)
		return nil, fmt.Errorf("collect %s: %w", kind, err)
	}
	run.Status = domain.RunCompleted
	run.Rows = table.Len()
	r.saveRun(ctx, run)
	return table, nil
}

// persist stages the export, saves the rows and only then moves the export
// into place, so a storage failure keeps the previous export.
func persist[R domain.Record](ctx context.Context, r *runner, kind domain.DatasetKind, table *dataset.Table[R], save func(context.Context, []R) error) error {
	staged, err := export.Stage(r.cfg.OutputDir, kind, r.format, table)
	if err != nil {
		return err
	}
	defer staged.Discard()

	if save != nil {
		if err := save(ctx, table.Rows); err != nil {
			return fmt.Errorf("failed to save %s: %w", kind, err)
		}
	}
	if err := staged.Commit(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Wrote %d %s rows to %s\n", table.Len(), kind, staged.Path)
	r.log.WithField("dataset", kind).WithField("rows", table.Len()).Info("collection completed")
	return nil
}

func (r *runner) progress(kind domain.DatasetKind) collector.ProgressCallback {
	return func(p collector.Progress) {
		fmt.Fprint(r.out, "\r", formatProgress(kind, p))
	}
}

func formatProgress(kind domain.DatasetKind, p collector.Progress) string {
	line := fmt.Sprintf("  %s: %d", kind, p.Records)
	if p.Total > 0 {
		line += fmt.Sprintf("/%d", p.Total)
	}
	if p.TicketTotal > 0 && kind == domain.DatasetComments {
		line += fmt.Sprintf(" (tickets %d/%d)", p.Tickets, p.TicketTotal)
	}
	return line
}

func (r *runner) saveRun(ctx context.Context, run *domain.CollectionRun) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		r.log.WithError(err).WithField("run", run.ID).Warn("failed to record collection run")
	}
}
