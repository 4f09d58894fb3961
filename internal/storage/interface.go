package storage

import (
	"context"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

// TicketFilter narrows ticket listings. Zero values match everything.
type TicketFilter struct {
	Channel  string
	SatScore string
	Limit    int
	Offset   int
}

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// Collection run bookkeeping
	SaveRun(ctx context.Context, run *domain.CollectionRun) error
	ListRuns(ctx context.Context, limit int) ([]*domain.CollectionRun, error)

	// Dataset writes replace rows with the same key
	SaveTickets(ctx context.Context, rows []domain.TicketSummary) error
	SaveMetrics(ctx context.Context, rows []domain.TicketMetrics) error
	SaveComments(ctx context.Context, rows []domain.TicketComment) error

	// Ticket retrieval
	GetTickets(ctx context.Context, filter TicketFilter) ([]domain.TicketSummary, error)
	GetTicketIDs(ctx context.Context) ([]int64, error)
	GetTicket(ctx context.Context, id int64) (*domain.TicketSummary, error)

	// Metric and comment retrieval
	GetMetrics(ctx context.Context, ticketID int64) (*domain.TicketMetrics, error)
	GetAllMetrics(ctx context.Context) ([]domain.TicketMetrics, error)
	GetComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error)

	// CountRows returns the stored row count of each dataset
	CountRows(ctx context.Context) (map[domain.DatasetKind]int, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
