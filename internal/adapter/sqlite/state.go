package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/neomorfeo/boxsync/internal/domain"
)

var (
	_ domain.SnapshotStore = (*StateStore)(nil)
	_ domain.SyncLock      = (*StateStore)(nil)
)

const lastSyncKey = "last_sync"

// StateStore keeps small pieces of run state: the last sync snapshot and
// the per-tenant advisory locks.
type StateStore struct {
	db  *sql.DB
	now func() time.Time
}

func (s *StateStore) SaveLastSync(ctx context.Context, result domain.AggregateResult) error {
	value, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		lastSyncKey, string(value), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LastSync returns the stored snapshot. The boolean is false when no run
// has completed yet.
func (s *StateStore) LastSync(ctx context.Context) (domain.AggregateResult, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, lastSyncKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AggregateResult{}, false, nil
	}
	if err != nil {
		return domain.AggregateResult{}, false, fmt.Errorf("reading snapshot: %w", err)
	}

	var result domain.AggregateResult
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return domain.AggregateResult{}, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return result, true, nil
}

// Acquire takes the lock for key until ttl elapses or release is called.
// Expired locks are reclaimed.
func (s *StateStore) Acquire(ctx context.Context, key, holder string, ttl time.Duration) (func(), error) {
	now := s.now()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_locks WHERE key = ? AND expires_at <= ?`, key, now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("reclaiming lock: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_locks (key, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		key, holder, now.Add(ttl).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, domain.ErrSyncInProgress
	}

	release := func() {
		// The lock expires on its own if this fails.
		_, _ = s.db.ExecContext(context.WithoutCancel(ctx),
			`DELETE FROM sync_locks WHERE key = ? AND holder = ?`, key, holder)
	}
	return release, nil
}
