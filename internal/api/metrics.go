package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/aggregator"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/logger"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
)

// DatasetMetrics exposes the stored datasets as Prometheus gauges
type DatasetMetrics struct {
	storage    storage.Storage
	aggregator aggregator.Aggregator
	log        *logger.Logger

	rows        *prometheus.GaugeVec
	goodRate    *prometheus.GaugeVec
	ratings     *prometheus.GaugeVec
	lastRefresh prometheus.Gauge
}

func NewDatasetMetrics(st storage.Storage, agg aggregator.Aggregator, log *logger.Logger) *DatasetMetrics {
	return &DatasetMetrics{
		storage:    st,
		aggregator: agg,
		log:        log,
		rows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helpdesk_dataset_rows",
				Help: "Stored rows per dataset",
			},
			[]string{"dataset"},
		),
		goodRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helpdesk_satisfaction_good_rate",
				Help: "Share of good ratings among rated tickets per channel",
			},
			[]string{"channel"},
		),
		ratings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helpdesk_satisfaction_ratings",
				Help: "Stored tickets per satisfaction score",
			},
			[]string{"score"},
		),
		lastRefresh: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "helpdesk_metrics_last_refresh_timestamp_seconds",
				Help: "Unix time of the last successful gauge refresh",
			},
		),
	}
}

// Register adds the gauges to reg
func (m *DatasetMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.rows, m.goodRate, m.ratings, m.lastRefresh} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Refresh reloads every gauge from storage
func (m *DatasetMetrics) Refresh(ctx context.Context) error {
	counts, err := m.storage.CountRows(ctx)
	if err != nil {
		return err
	}
	summary, err := m.aggregator.SatisfactionSummary(ctx)
	if err != nil {
		return err
	}
	channels, err := m.aggregator.ChannelBreakdown(ctx)
	if err != nil {
		return err
	}

	for _, kind := range []domain.DatasetKind{domain.DatasetTickets, domain.DatasetMetrics, domain.DatasetComments} {
		m.rows.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}

	m.ratings.Reset()
	m.ratings.WithLabelValues(domain.ScoreGood).Set(float64(summary.Good))
	m.ratings.WithLabelValues(domain.ScoreBad).Set(float64(summary.Bad))

	// channels may disappear between refreshes
	m.goodRate.Reset()
	for _, c := range channels {
		m.goodRate.WithLabelValues(c.Channel).Set(c.GoodRate)
	}

	m.lastRefresh.SetToCurrentTime()
	return nil
}

// Run refreshes the gauges every interval until ctx is done
func (m *DatasetMetrics) Run(ctx context.Context, interval time.Duration) {
	if err := m.Refresh(ctx); err != nil {
		m.log.WithError(err).Warn("failed to refresh dataset metrics")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.log.WithError(err).Warn("failed to refresh dataset metrics")
			}
		}
	}
}
