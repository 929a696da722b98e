package river

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// Syncer runs one sync across all tenants.
type Syncer interface {
	SyncAll(ctx context.Context) (domain.AggregateResult, error)
}

// Purger deletes old sync log entries.
type Purger interface {
	Purge(ctx context.Context, retentionDays int) (int64, error)
}

// SyncWorker runs the orchestrator and stores the result as the latest
// snapshot.
type SyncWorker struct {
	river.WorkerDefaults[SyncJobArgs]

	syncer    Syncer
	snapshots domain.SnapshotStore
	timeout   time.Duration
}

func NewSyncWorker(syncer Syncer, snapshots domain.SnapshotStore, timeout time.Duration) *SyncWorker {
	return &SyncWorker{syncer: syncer, snapshots: snapshots, timeout: timeout}
}

// Timeout bounds a run by the sync lock lifetime.
func (w *SyncWorker) Timeout(*river.Job[SyncJobArgs]) time.Duration {
	return w.timeout
}

func (w *SyncWorker) Work(ctx context.Context, job *river.Job[SyncJobArgs]) error {
	log := logging.Ctx(ctx)
	log.Info().
		Int64("job_id", job.ID).
		Str("reason", job.Args.Reason).
		Msg("sync job started")

	result, runErr := w.syncer.SyncAll(ctx)

	// A cancelled run still leaves a partial result worth reporting.
	if err := w.snapshots.SaveLastSync(context.WithoutCancel(ctx), result); err != nil {
		return fmt.Errorf("saving sync snapshot: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("running sync: %w", runErr)
	}

	log.Info().
		Int64("job_id", job.ID).
		Str("run_id", result.RunID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("errors", len(result.Errors)).
		Msg("sync job finished")
	return nil
}

// PurgeWorker applies sync log retention.
type PurgeWorker struct {
	river.WorkerDefaults[PurgeLogsArgs]

	purger Purger
}

func NewPurgeWorker(purger Purger) *PurgeWorker {
	return &PurgeWorker{purger: purger}
}

func (w *PurgeWorker) Work(ctx context.Context, job *river.Job[PurgeLogsArgs]) error {
	n, err := w.purger.Purge(ctx, job.Args.RetentionDays)
	if err != nil {
		return fmt.Errorf("purging sync log: %w", err)
	}
	logging.Ctx(ctx).Debug().
		Int64("job_id", job.ID).
		Int64("purged", n).
		Msg("sync log purge finished")
	return nil
}
