package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collection_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON collection_runs(started_at);

	CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT PRIMARY KEY,
		type TEXT,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		group_id BIGINT,
		recipient TEXT,
		channel TEXT,
		sat_score TEXT,
		sat_comment TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_channel ON tickets(channel);
	CREATE INDEX IF NOT EXISTS idx_tickets_sat_score ON tickets(sat_score);

	CREATE TABLE IF NOT EXISTS ticket_metrics (
		id BIGINT NOT NULL,
		ticket_id BIGINT PRIMARY KEY,
		url TEXT NOT NULL,
		group_stations BIGINT,
		assignee_stations BIGINT,
		reopens BIGINT,
		replies BIGINT,
		assignee_updated_at TEXT,
		requester_updated_at TEXT,
		status_updated_at TEXT,
		initially_assigned_at TEXT,
		assigned_at TEXT,
		solved_at TEXT,
		latest_comment_added_at TEXT,
		created_at TEXT,
		updated_at TEXT,
		reply_mins DOUBLE PRECISION,
		first_reso_mins DOUBLE PRECISION,
		full_reso_mins DOUBLE PRECISION,
		agent_wait_mins DOUBLE PRECISION,
		requester_wait_mins DOUBLE PRECISION,
		on_hold_mins DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS ticket_comments (
		id BIGINT PRIMARY KEY,
		type TEXT,
		author_id BIGINT,
		body TEXT NOT NULL,
		html_body TEXT NOT NULL,
		plain_body TEXT NOT NULL,
		public BOOLEAN,
		audit_id BIGINT,
		created_at TEXT,
		channel TEXT,
		ticket_id BIGINT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_comments_ticket_seq ON ticket_comments(ticket_id, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// upsert builds an INSERT ... ON CONFLICT DO UPDATE over every non-key column
func upsert(table string, columns []string, key string) string {
	var sets []string
	for _, c := range columns {
		if c == key {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), storage.Placeholders(len(columns), true), key, strings.Join(sets, ", "))
}

// SaveRun inserts or updates a collection run
func (s *postgresStorage) SaveRun(ctx context.Context, run *domain.CollectionRun) error {
	query := upsert("collection_runs", strings.Split(storage.RunColumns, ", "), "id")
	_, err := s.db.ExecContext(ctx, query, storage.RunArgs(run)...)
	return err
}

// ListRuns returns the most recent runs first
func (s *postgresStorage) ListRuns(ctx context.Context, limit int) ([]*domain.CollectionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storage.RunColumns+`
		FROM collection_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.CollectionRun
	for rows.Next() {
		run, err := storage.ScanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveTickets saves ticket summaries
func (s *postgresStorage) SaveTickets(ctx context.Context, tickets []domain.TicketSummary) error {
	return s.saveAll(ctx, upsert("tickets", domain.TicketSummaryColumns, "id"),
		len(tickets), func(i int) []any { return storage.TicketArgs(&tickets[i]) })
}

// SaveMetrics saves ticket metrics, one row per ticket
func (s *postgresStorage) SaveMetrics(ctx context.Context, metrics []domain.TicketMetrics) error {
	return s.saveAll(ctx, upsert("ticket_metrics", domain.TicketMetricsColumns, "ticket_id"),
		len(metrics), func(i int) []any { return storage.MetricArgs(&metrics[i]) })
}

// SaveComments replaces the stored comments of every ticket present in comments
func (s *postgresStorage) SaveComments(ctx context.Context, comments []domain.TicketComment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM ticket_comments WHERE ticket_id = $1`)
	if err != nil {
		return err
	}
	defer del.Close()

	columns := append(append([]string{}, domain.TicketCommentColumns...), "seq")
	stmt, err := tx.PrepareContext(ctx, upsert("ticket_comments", columns, "id"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	order, byTicket := storage.GroupComments(comments)
	for _, ticketID := range order {
		if _, err := del.ExecContext(ctx, ticketID); err != nil {
			return err
		}
		for seq, c := range byTicket[ticketID] {
			args := append(storage.CommentArgs(&c), seq)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *postgresStorage) saveAll(ctx context.Context, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTickets retrieves tickets ordered by id
func (s *postgresStorage) GetTickets(ctx context.Context, filter storage.TicketFilter) ([]domain.TicketSummary, error) {
	var where []string
	var args []any
	if filter.Channel != "" {
		args = append(args, filter.Channel)
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	if filter.SatScore != "" {
		args = append(args, filter.SatScore)
		where = append(where, fmt.Sprintf("sat_score = $%d", len(args)))
	}

	query := `SELECT ` + storage.TicketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.TicketSummary{}
	for rows.Next() {
		t, err := storage.ScanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// GetTicketIDs returns every stored ticket id in ascending order
func (s *postgresStorage) GetTicketIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tickets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTicket retrieves one ticket
func (s *postgresStorage) GetTicket(ctx context.Context, id int64) (*domain.TicketSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storage.TicketColumns+` FROM tickets WHERE id = $1`, id)
	t, err := storage.ScanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("ticket %d", id))
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetMetrics retrieves the metrics of one ticket
func (s *postgresStorage) GetMetrics(ctx context.Context, ticketID int64) (*domain.TicketMetrics, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storage.MetricColumns+` FROM ticket_metrics WHERE ticket_id = $1`, ticketID)
	m, err := storage.ScanMetrics(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("metrics of ticket %d", ticketID))
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetAllMetrics retrieves every metrics row ordered by ticket id
func (s *postgresStorage) GetAllMetrics(ctx context.Context) ([]domain.TicketMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+storage.MetricColumns+` FROM ticket_metrics ORDER BY ticket_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := []domain.TicketMetrics{}
	for rows.Next() {
		m, err := storage.ScanMetrics(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// GetComments retrieves the comments of one ticket in chronological order
func (s *postgresStorage) GetComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storage.CommentColumns+`
		FROM ticket_comments
		WHERE ticket_id = $1
		ORDER BY seq
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []domain.TicketComment{}
	for rows.Next() {
		c, err := storage.ScanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CountRows returns the row count of each dataset table
func (s *postgresStorage) CountRows(ctx context.Context) (map[domain.DatasetKind]int, error) {
	var tickets, metrics, comments int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tickets),
			(SELECT COUNT(*) FROM ticket_metrics),
			(SELECT COUNT(*) FROM ticket_comments)
	`).Scan(&tickets, &metrics, &comments)
	if err != nil {
		return nil, err
	}
	return map[domain.DatasetKind]int{
		domain.DatasetTickets:  tickets,
		domain.DatasetMetrics:  metrics,
		domain.DatasetComments: comments,
	}, nil
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
