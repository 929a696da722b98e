package river_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	riveradapter "github.com/neomorfeo/boxsync/internal/adapter/river"
	"github.com/neomorfeo/boxsync/internal/domain"
)

type stubSyncer struct {
	mu     sync.Mutex
	calls  int
	result domain.AggregateResult
	err    error
}

func (s *stubSyncer) SyncAll(context.Context) (domain.AggregateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func (s *stubSyncer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type memSnapshots struct {
	mu    sync.Mutex
	saved []domain.AggregateResult
	err   error
}

func (m *memSnapshots) SaveLastSync(_ context.Context, r domain.AggregateResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, r)
	return nil
}

func (m *memSnapshots) LastSync(context.Context) (domain.AggregateResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return domain.AggregateResult{}, false, nil
	}
	return m.saved[len(m.saved)-1], true, nil
}

type stubPurger struct {
	days []int
	err  error
}

func (p *stubPurger) Purge(_ context.Context, days int) (int64, error) {
	p.days = append(p.days, days)
	return 3, p.err
}

func syncJob(reason string) *goriver.Job[riveradapter.SyncJobArgs] {
	return &goriver.Job[riveradapter.SyncJobArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: 1},
		Args:   riveradapter.SyncJobArgs{Reason: reason},
	}
}

func TestSyncWorker_SavesSnapshot(t *testing.T) {
	syncer := &stubSyncer{result: domain.AggregateResult{RunID: "run-1", Created: 2}}
	snaps := &memSnapshots{}
	w := riveradapter.NewSyncWorker(syncer, snaps, time.Minute)

	if err := w.Work(context.Background(), syncJob("manual")); err != nil {
		t.Fatalf("Work: %v", err)
	}

	got, ok, _ := snaps.LastSync(context.Background())
	if !ok || got.RunID != "run-1" || got.Created != 2 {
		t.Errorf("snapshot = %+v (ok=%v)", got, ok)
	}
	if w.Timeout(syncJob("")) != time.Minute {
		t.Errorf("Timeout = %v, want 1m", w.Timeout(syncJob("")))
	}
}

func TestSyncWorker_CancelledRunStillSavesPartialResult(t *testing.T) {
	syncer := &stubSyncer{
		result: domain.AggregateResult{RunID: "run-2", Errors: []string{"run cancelled: 1 tenants not synced"}},
		err:    context.Canceled,
	}
	snaps := &memSnapshots{}
	w := riveradapter.NewSyncWorker(syncer, snaps, time.Minute)

	err := w.Work(context.Background(), syncJob("scheduled"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(snaps.saved) != 1 || snaps.saved[0].RunID != "run-2" {
		t.Errorf("saved = %+v", snaps.saved)
	}
}

func TestSyncWorker_SnapshotFailure(t *testing.T) {
	w := riveradapter.NewSyncWorker(&stubSyncer{}, &memSnapshots{err: errors.New("disk full")}, time.Minute)

	if err := w.Work(context.Background(), syncJob("manual")); err == nil {
		t.Fatal("expected error")
	}
}

func TestPurgeWorker_PassesRetention(t *testing.T) {
	purger := &stubPurger{}
	w := riveradapter.NewPurgeWorker(purger)

	job := &goriver.Job[riveradapter.PurgeLogsArgs]{
		JobRow: &rivertype.JobRow{ID: 1},
		Args:   riveradapter.PurgeLogsArgs{RetentionDays: 14},
	}
	if err := w.Work(context.Background(), job); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if len(purger.days) != 1 || purger.days[0] != 14 {
		t.Errorf("purge days = %v, want [14]", purger.days)
	}

	purger.err = errors.New("locked")
	if err := w.Work(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobArgs_Routing(t *testing.T) {
	if got := (riveradapter.SyncJobArgs{}).Kind(); got != "sync.all_tenants" {
		t.Errorf("sync kind = %q", got)
	}
	opts := riveradapter.SyncJobArgs{}.InsertOpts()
	if opts.Queue != riveradapter.QueueSync || opts.MaxAttempts != 1 {
		t.Errorf("sync insert opts = %+v", opts)
	}
	if got := (riveradapter.PurgeLogsArgs{}).Kind(); got != "sync_log.purge" {
		t.Errorf("purge kind = %q", got)
	}
}

func TestPeriodicJobs(t *testing.T) {
	tests := []struct {
		name string
		cfg  riveradapter.Config
		want int
	}{
		{"both", riveradapter.Config{SyncInterval: time.Hour, PurgeInterval: 24 * time.Hour}, 2},
		{"sync only", riveradapter.Config{SyncInterval: time.Hour}, 1},
		{"disabled", riveradapter.Config{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(riveradapter.PeriodicJobs(tt.cfg)); got != tt.want {
				t.Errorf("got %d periodic jobs, want %d", got, tt.want)
			}
		})
	}
}
