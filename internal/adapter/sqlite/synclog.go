package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/neomorfeo/boxsync/internal/domain"
)

var _ domain.LogStore = (*LogStore)(nil)

// LogStore implements domain.LogStore using SQLite.
type LogStore struct {
	db *sql.DB
}

func (s *LogStore) Append(ctx context.Context, e domain.LogEntry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encoding log details: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_log (run_id, timestamp, level, action, remote_event_id, event_title, tenant_name, message, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, formatTime(e.Timestamp), string(e.Level), string(e.Action),
		e.RemoteEventID, e.EventTitle, e.TenantName, e.Message, string(details),
	)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// Entries returns one page of entries, newest first.
func (s *LogStore) Entries(ctx context.Context, q domain.LogQuery) (domain.LogPage, error) {
	q = q.Normalize()

	where := ``
	var args []any
	if q.RunID != "" {
		where = ` WHERE run_id = ?`
		args = append(args, q.RunID)
	}

	var page domain.LogPage
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_log`+where, args...).Scan(&page.Total); err != nil {
		return domain.LogPage{}, fmt.Errorf("counting log entries: %w", err)
	}
	page.Pages = (page.Total + q.PerPage - 1) / q.PerPage

	args = append(args, q.PerPage, (q.Page-1)*q.PerPage)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, timestamp, level, action, remote_event_id, event_title, tenant_name, message, details
		 FROM sync_log`+where+`
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return domain.LogPage{}, fmt.Errorf("listing log entries: %w", err)
	}
	defer rows.Close()

	page.Entries = []domain.LogEntry{}
	for rows.Next() {
		var e domain.LogEntry
		var ts, level, action, details string
		if err := rows.Scan(&e.ID, &e.RunID, &ts, &level, &action,
			&e.RemoteEventID, &e.EventTitle, &e.TenantName, &e.Message, &details); err != nil {
			return domain.LogPage{}, fmt.Errorf("scanning log entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(timeFormat, ts)
		e.Level = domain.LogLevel(level)
		e.Action = domain.LogAction(action)
		if details != "" {
			// Unreadable details are dropped rather than failing the page.
			_ = json.Unmarshal([]byte(details), &e.Details)
		}
		page.Entries = append(page.Entries, e)
	}
	return page, rows.Err()
}

// Runs summarises the most recent runs, latest first.
func (s *LogStore) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, MIN(timestamp), MAX(timestamp), COUNT(*)
		 FROM sync_log
		 GROUP BY run_id
		 ORDER BY MAX(timestamp) DESC, MAX(id) DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.RunSummary{}
	for rows.Next() {
		var r domain.RunSummary
		var started, ended string
		if err := rows.Scan(&r.RunID, &started, &ended, &r.EntryCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeFormat, started)
		r.EndedAt, _ = time.Parse(timeFormat, ended)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *LogStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_log`); err != nil {
		return fmt.Errorf("clearing sync log: %w", err)
	}
	return nil
}

// PurgeBefore deletes entries older than cutoff and reports how many went.
func (s *LogStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_log WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purging sync log: %w", err)
	}
	return result.RowsAffected()
}
