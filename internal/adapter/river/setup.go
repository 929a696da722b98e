package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// Config controls job scheduling. A zero interval disables that periodic job.
type Config struct {
	SyncInterval   time.Duration
	SyncTimeout    time.Duration
	RunOnStart     bool
	PurgeInterval  time.Duration
	RetentionDays  int
	DefaultWorkers int
}

// Deps are the services the workers call into.
type Deps struct {
	Syncer    Syncer
	Snapshots domain.SnapshotStore
	Purger    Purger
}

// Setup runs River's migrations and builds a client with the sync and purge
// workers and their periodic schedules registered. The caller owns Start
// and Stop.
func Setup(ctx context.Context, db *sql.DB, deps Deps, cfg Config) (*Client, error) {
	driver := riversqlite.New(db)

	// River's tables are separate from the app's goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, fmt.Errorf("running river migrations: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewSyncWorker(deps.Syncer, deps.Snapshots, cfg.SyncTimeout))
	river.AddWorker(workers, NewPurgeWorker(deps.Purger))

	defaultWorkers := cfg.DefaultWorkers
	if defaultWorkers < 1 {
		defaultWorkers = 2
	}

	client, err := river.NewClient(driver, &river.Config{
		Logger: logging.NewSlogLogger(logging.WithComponent("river")),
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: defaultWorkers},
			QueueSync:          {MaxWorkers: 1},
		},
		PeriodicJobs: PeriodicJobs(cfg),
		Workers:      workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}

// PeriodicJobs returns the scheduled sync and purge jobs for cfg.
func PeriodicJobs(cfg Config) []*river.PeriodicJob {
	var jobs []*river.PeriodicJob
	if cfg.SyncInterval > 0 {
		jobs = append(jobs, river.NewPeriodicJob(
			river.PeriodicInterval(cfg.SyncInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return SyncJobArgs{Reason: "scheduled"}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: cfg.RunOnStart},
		))
	}
	if cfg.PurgeInterval > 0 {
		retention := domain.RetentionDays(cfg.RetentionDays)
		jobs = append(jobs, river.NewPeriodicJob(
			river.PeriodicInterval(cfg.PurgeInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return PurgeLogsArgs{RetentionDays: retention}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}
	return jobs
}
