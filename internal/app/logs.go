package app

import (
	"context"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// DefaultRunsLimit caps the run summaries returned when none is requested.
const DefaultRunsLimit = 50

// LogService exposes the persisted sync log.
type LogService struct {
	store domain.LogStore
	now   func() time.Time
}

// NewLogService creates a log service backed by store.
func NewLogService(store domain.LogStore) *LogService {
	return &LogService{store: store, now: time.Now}
}

// Entries returns a page of entries, newest first.
func (s *LogService) Entries(ctx context.Context, q domain.LogQuery) (domain.LogPage, error) {
	return s.store.Entries(ctx, q.Normalize())
}

// Runs returns the most recent runs.
func (s *LogService) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit < 1 {
		limit = DefaultRunsLimit
	}
	return s.store.Runs(ctx, limit)
}

// Clear deletes every entry.
func (s *LogService) Clear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Purge deletes entries older than the retention window. Windows below one
// day use the default of 30.
func (s *LogService) Purge(ctx context.Context, retentionDays int) (int64, error) {
	days := domain.RetentionDays(retentionDays)
	cutoff := s.now().UTC().AddDate(0, 0, -days)

	n, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logging.Ctx(ctx).Info().Int64("purged", n).Int("retention_days", days).Msg("sync log purged")
	return n, nil
}
