package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
)

// Column lists shared by the SQL adapters. Table columns carry the dataset
// column names.
var (
	TicketColumns  = strings.Join(domain.TicketSummaryColumns, ", ")
	MetricColumns  = strings.Join(domain.TicketMetricsColumns, ", ")
	CommentColumns = strings.Join(domain.TicketCommentColumns, ", ")
	RunColumns     = "id, kind, status, row_count, error, started_at, finished_at"
)

// Scanner is satisfied by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...any) error
}

// Placeholders returns n bind parameters, "$1, $2" style when numbered
func Placeholders(n int, numbered bool) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		if numbered {
			fmt.Fprintf(&b, "$%d", i)
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}

func TicketArgs(t *domain.TicketSummary) []any {
	return []any{t.ID, t.Type, t.Subject, t.Description, t.Status, t.GroupID,
		t.Recipient, t.Channel, t.SatScore, t.SatComment}
}

func ScanTicket(s Scanner) (domain.TicketSummary, error) {
	var t domain.TicketSummary
	err := s.Scan(&t.ID, &t.Type, &t.Subject, &t.Description, &t.Status, &t.GroupID,
		&t.Recipient, &t.Channel, &t.SatScore, &t.SatComment)
	return t, err
}

func MetricArgs(m *domain.TicketMetrics) []any {
	return []any{m.ID, m.TicketID, m.URL, m.GroupStations, m.AssigneeStations, m.Reopens, m.Replies,
		m.AssigneeUpdatedAt, m.RequesterUpdatedAt, m.StatusUpdatedAt, m.InitiallyAssignedAt,
		m.AssignedAt, m.SolvedAt, m.LatestCommentAddedAt, m.CreatedAt, m.UpdatedAt,
		m.ReplyMins, m.FirstResoMins, m.FullResoMins, m.AgentWaitMins, m.RequesterWaitMins, m.OnHoldMins}
}

func ScanMetrics(s Scanner) (domain.TicketMetrics, error) {
	var m domain.TicketMetrics
	err := s.Scan(&m.ID, &m.TicketID, &m.URL, &m.GroupStations, &m.AssigneeStations, &m.Reopens, &m.Replies,
		&m.AssigneeUpdatedAt, &m.RequesterUpdatedAt, &m.StatusUpdatedAt, &m.InitiallyAssignedAt,
		&m.AssignedAt, &m.SolvedAt, &m.LatestCommentAddedAt, &m.CreatedAt, &m.UpdatedAt,
		&m.ReplyMins, &m.FirstResoMins, &m.FullResoMins, &m.AgentWaitMins, &m.RequesterWaitMins, &m.OnHoldMins)
	return m, err
}

func CommentArgs(c *domain.TicketComment) []any {
	return []any{c.ID, c.Type, c.AuthorID, c.Body, c.HTMLBody, c.PlainBody,
		c.Public, c.AuditID, c.CreatedAt, c.Channel, c.TicketID}
}

func ScanComment(s Scanner) (domain.TicketComment, error) {
	var c domain.TicketComment
	err := s.Scan(&c.ID, &c.Type, &c.AuthorID, &c.Body, &c.HTMLBody, &c.PlainBody,
		&c.Public, &c.AuditID, &c.CreatedAt, &c.Channel, &c.TicketID)
	return c, err
}

func RunArgs(r *domain.CollectionRun) []any {
	return []any{r.ID, string(r.Kind), r.Status, r.Rows, r.Error, r.StartedAt, r.FinishedAt}
}

func ScanRun(s Scanner) (*domain.CollectionRun, error) {
	var r domain.CollectionRun
	var kind string
	var finished sql.NullTime
	if err := s.Scan(&r.ID, &kind, &r.Status, &r.Rows, &r.Error, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	r.Kind = domain.DatasetKind(kind)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// GroupComments splits rows into per-ticket runs keeping first-seen ticket
// order and row order within each ticket
func GroupComments(rows []domain.TicketComment) (order []int64, byTicket map[int64][]domain.TicketComment) {
	byTicket = make(map[int64][]domain.TicketComment)
	for _, c := range rows {
		if _, ok := byTicket[c.TicketID]; !ok {
			order = append(order, c.TicketID)
		}
		byTicket[c.TicketID] = append(byTicket[c.TicketID], c)
	}
	return order, byTicket
}
