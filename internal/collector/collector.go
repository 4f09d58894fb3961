package collector

import (
	"context"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/dataset"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

// Collector defines the interface for collecting helpdesk datasets. Each
// call opens its own session and either returns the complete dataset or
// an error, never a partial table.
type Collector interface {
	// CollectTickets retrieves every closed, rated ticket
	CollectTickets(ctx context.Context, onProgress ProgressCallback) (*dataset.Table[domain.TicketSummary], error)

	// CollectMetrics retrieves one metrics row per id, in id order
	CollectMetrics(ctx context.Context, ids []int64, onProgress ProgressCallback) (*dataset.Table[domain.TicketMetrics], error)

	// CollectComments retrieves every comment of each ticket in id order,
	// oldest first within a ticket
	CollectComments(ctx context.Context, ids []int64, onProgress ProgressCallback) (*dataset.Table[domain.TicketComment], error)
}

// Progress is the running count of one collection run
type Progress struct {
	// Records is the number of rows collected so far
	Records int
	// Total is the expected number of rows, 0 when unknown
	Total int
	// Tickets and TicketTotal count finished tickets for per-ticket datasets
	Tickets     int
	TicketTotal int
}

// ProgressCallback is a callback function for reporting progress
type ProgressCallback func(p Progress)

func report(cb ProgressCallback, p Progress) {
	if cb != nil {
		cb(p)
	}
}
