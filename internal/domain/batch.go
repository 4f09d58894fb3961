package domain

import "time"

// DatasetKind names one of the three collected datasets
type DatasetKind string

const (
	DatasetTickets  DatasetKind = "tickets"
	DatasetMetrics  DatasetKind = "metrics"
	DatasetComments DatasetKind = "comments"
)

// Run statuses
const (
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// CollectionRun records one collector invocation
type CollectionRun struct {
	ID         string      `json:"id"`
	Kind       DatasetKind `json:"kind"`
	Status     string      `json:"status"` // "in_progress", "completed", "failed"
	Rows       int         `json:"rows"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Columns returns the dataset column order for a kind
func (k DatasetKind) Columns() []string {
	switch k {
	case DatasetTickets:
		return TicketSummaryColumns
	case DatasetMetrics:
		return TicketMetricsColumns
	case DatasetComments:
		return TicketCommentColumns
	}
	return nil
}

// FileName returns the export file base name for a kind
func (k DatasetKind) FileName() string {
	switch k {
	case DatasetMetrics:
		return "ticket_metrics"
	case DatasetComments:
		return "ticket_comments"
	default:
		return "tickets"
	}
}
