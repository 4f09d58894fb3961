package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/domain"
	apperrors "github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/errors"
	"github.com/kurihiro0119/helpdesk-satisfaction-metrics/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if dbPath == ":memory:" {
		// each connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collection_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON collection_runs(started_at);

	CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY,
		type TEXT,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		group_id INTEGER,
		recipient TEXT,
		channel TEXT,
		sat_score TEXT,
		sat_comment TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tickets_channel ON tickets(channel);
	CREATE INDEX IF NOT EXISTS idx_tickets_sat_score ON tickets(sat_score);

	CREATE TABLE IF NOT EXISTS ticket_metrics (
		id INTEGER NOT NULL,
		ticket_id INTEGER PRIMARY KEY,
		url TEXT NOT NULL,
		group_stations INTEGER,
		assignee_stations INTEGER,
		reopens INTEGER,
		replies INTEGER,
		assignee_updated_at TEXT,
		requester_updated_at TEXT,
		status_updated_at TEXT,
		initially_assigned_at TEXT,
		assigned_at TEXT,
		solved_at TEXT,
		latest_comment_added_at TEXT,
		created_at TEXT,
		updated_at TEXT,
		reply_mins REAL,
		first_reso_mins REAL,
		full_reso_mins REAL,
		agent_wait_mins REAL,
		requester_wait_mins REAL,
		on_hold_mins REAL
	);

	CREATE TABLE IF NOT EXISTS ticket_comments (
		id INTEGER PRIMARY KEY,
		type TEXT,
		author_id INTEGER,
		body TEXT NOT NULL,
		html_body TEXT NOT NULL,
		plain_body TEXT NOT NULL,
		public INTEGER,
		audit_id INTEGER,
		created_at TEXT,
		channel TEXT,
		ticket_id INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_comments_ticket_seq ON ticket_comments(ticket_id, seq);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts or updates a collection run
func (s *sqliteStorage) SaveRun(ctx context.Context, run *domain.CollectionRun) error {
	query := `INSERT OR REPLACE INTO collection_runs (` + storage.RunColumns + `) VALUES (` + storage.Placeholders(7, false) + `)`
	_, err := s.db.ExecContext(ctx, query, storage.RunArgs(run)...)
	return err
}

// ListRuns returns the most recent runs first
func (s *sqliteStorage) ListRuns(ctx context.Context, limit int) ([]*domain.CollectionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storage.RunColumns+`
		FROM collection_runs
		ORDER BY started_at DESC
		LIMIT ?
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
func (s *sqliteStorage) SaveTickets(ctx context.Context, tickets []domain.TicketSummary) error {
	return s.saveAll(ctx, `
		INSERT OR REPLACE INTO tickets (`+storage.TicketColumns+`)
		VALUES (`+storage.Placeholders(len(domain.TicketSummaryColumns), false)+`)
	`, len(tickets), func(i int) []any { return storage.TicketArgs(&tickets[i]) })
}

// SaveMetrics saves ticket metrics, one row per ticket
func (s *sqliteStorage) SaveMetrics(ctx context.Context, metrics []domain.TicketMetrics) error {
	return s.saveAll(ctx, `
		INSERT OR REPLACE INTO ticket_metrics (`+storage.MetricColumns+`)
		VALUES (`+storage.Placeholders(len(domain.TicketMetricsColumns), false)+`)
	`, len(metrics), func(i int) []any { return storage.MetricArgs(&metrics[i]) })
}

// SaveComments replaces the stored comments of every ticket present in comments
func (s *sqliteStorage) SaveComments(ctx context.Context, comments []domain.TicketComment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM ticket_comments WHERE ticket_id = ?`)
	if err != nil {
		return err
	}
	defer del.Close()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ticket_comments (`+storage.CommentColumns+`, seq)
		VALUES (`+storage.Placeholders(len(domain.TicketCommentColumns)+1, false)+`)
	`)
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

func (s *sqliteStorage) saveAll(ctx context.Context, query string, n int, args func(i int) []any) error {
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
func (s *sqliteStorage) GetTickets(ctx context.Context, filter storage.TicketFilter) ([]domain.TicketSummary, error) {
	var where []string
	var args []any
	if filter.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, filter.Channel)
	}
	if filter.SatScore != "" {
		where = append(where, "sat_score = ?")
		args = append(args, filter.SatScore)
	}

	query := `SELECT ` + storage.TicketColumns + ` FROM tickets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
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
func (s *sqliteStorage) GetTicketIDs(ctx context.Context) ([]int64, error) {
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
func (s *sqliteStorage) GetTicket(ctx context.Context, id int64) (*domain.TicketSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storage.TicketColumns+` FROM tickets WHERE id = ?`, id)
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
func (s *sqliteStorage) GetMetrics(ctx context.Context, ticketID int64) (*domain.TicketMetrics, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storage.MetricColumns+` FROM ticket_metrics WHERE ticket_id = ?`, ticketID)
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
func (s *sqliteStorage) GetAllMetrics(ctx context.Context) ([]domain.TicketMetrics, error) {
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
func (s *sqliteStorage) GetComments(ctx context.Context, ticketID int64) ([]domain.TicketComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+storage.CommentColumns+`
		FROM ticket_comments
		WHERE ticket_id = ?
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
func (s *sqliteStorage) CountRows(ctx context.Context) (map[domain.DatasetKind]int, error) {
	tables := map[domain.DatasetKind]string{
		domain.DatasetTickets:  "tickets",
		domain.DatasetMetrics:  "ticket_metrics",
		domain.DatasetComments: "ticket_comments",
	}
	counts := make(map[domain.DatasetKind]int, len(tables))
	for kind, table := range tables {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, nil
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
