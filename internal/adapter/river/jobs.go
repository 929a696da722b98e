package river

import (
	"database/sql"

	"github.com/riverqueue/river"
)

// QueueSync runs whole-fleet syncs. It has a single worker so runs and
// snapshot writes never overlap.
const QueueSync = "sync"

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// SyncJobArgs requests a sync of every active tenant.
type SyncJobArgs struct {
	Reason string `json:"reason"`
}

func (SyncJobArgs) Kind() string { return "sync.all_tenants" }

// InsertOpts routes sync jobs to the serial queue. A failed run is not
// retried; the next scheduled run picks up where it left off.
func (SyncJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: QueueSync, MaxAttempts: 1}
}

// PurgeLogsArgs requests deletion of sync log entries older than the
// retention window.
type PurgeLogsArgs struct {
	RetentionDays int `json:"retention_days"`
}

func (PurgeLogsArgs) Kind() string { return "sync_log.purge" }

func (PurgeLogsArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: river.QueueDefault, MaxAttempts: 3}
}
