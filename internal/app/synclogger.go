package app

import (
	"context"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// NewSyncLogger returns the logger for one run. When logging is disabled or
// no store is configured, the returned logger does nothing.
func NewSyncLogger(store domain.LogStore, enabled bool, runID string) domain.SyncLogger {
	if !enabled || store == nil {
		return noopLogger{runID: runID}
	}
	return &storeLogger{store: store, runID: runID, now: time.Now}
}

type noopLogger struct {
	runID string
}

func (noopLogger) Log(context.Context, domain.LogLevel, domain.LogAction, string, domain.LogExtra) {}

func (l noopLogger) RunID() string { return l.runID }

type storeLogger struct {
	store domain.LogStore
	runID string
	now   func() time.Time
}

func (l *storeLogger) Log(ctx context.Context, level domain.LogLevel, action domain.LogAction, message string, extra domain.LogExtra) {
	err := l.store.Append(context.WithoutCancel(ctx), domain.LogEntry{
		RunID:         l.runID,
		Timestamp:     l.now().UTC(),
		Level:         level,
		Action:        action,
		RemoteEventID: extra.RemoteEventID,
		EventTitle:    extra.EventTitle,
		TenantName:    extra.TenantName,
		Message:       message,
		Details:       extra.Details,
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", string(action)).Msg("writing sync log entry")
	}
}

func (l *storeLogger) RunID() string { return l.runID }
