package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// DefaultLockTTL bounds how long a crashed run can hold a tenant lock.
const DefaultLockTTL = 30 * time.Minute

// OrchestratorConfig tunes a multi-tenant run.
type OrchestratorConfig struct {
	// LegacyAPIKey is used for the unscoped run when no tenant is active.
	LegacyAPIKey string
	// Concurrency is the number of tenants synced in parallel. Values below
	// two run tenants one after another.
	Concurrency int
	LockTTL     time.Duration
	// LogEnabled turns on the persisted sync log.
	LogEnabled bool
}

// Orchestrator runs the sync engine over every active tenant.
type Orchestrator struct {
	registry *TenantRegistry
	engine   *SyncEngine
	sources  domain.SourceFactory
	lock     domain.SyncLock
	logs     domain.LogStore
	metrics  domain.SyncMetrics
	cfg      OrchestratorConfig
	now      func() time.Time
	newRunID func() string
}

// NewOrchestrator creates an orchestrator. lock, logs and metrics may be nil.
func NewOrchestrator(
	registry *TenantRegistry,
	engine *SyncEngine,
	sources domain.SourceFactory,
	lock domain.SyncLock,
	logs domain.LogStore,
	metrics domain.SyncMetrics,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &Orchestrator{
		registry: registry,
		engine:   engine,
		sources:  sources,
		lock:     lock,
		logs:     logs,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

type tenantRun struct {
	key    string
	name   string
	result domain.TenantResult
}

// SyncAll reconciles every active tenant, or the legacy scope when there
// are none. One tenant's failure never stops the others. Cancellation is
// honoured between tenants only; the partial result is returned with the
// context error.
func (o *Orchestrator) SyncAll(ctx context.Context) (result domain.AggregateResult, err error) {
	runID := o.newRunID()
	ctx = logging.WithRunID(ctx, runID)
	started := o.now().UTC()
	result = domain.NewAggregateResult(runID, started)
	runLog := NewSyncLogger(o.logs, o.cfg.LogEnabled, runID)
	log := logging.Ctx(ctx)

	defer func() {
		result.FinishedAt = o.now().UTC()
		if o.metrics != nil {
			o.metrics.ObserveRun(result, result.FinishedAt.Sub(started))
		}
		log.Info().
			Int("created", result.Created).
			Int("updated", result.Updated).
			Int("deleted", result.Deleted).
			Int("errors", len(result.Errors)).
			Dur("duration", result.FinishedAt.Sub(started)).
			Msg("sync run finished")
	}()

	tenants, err := o.registry.List(ctx, domain.FilterActive)
	if err != nil {
		result.Errors = append(result.Errors, "listing tenants: "+err.Error())
		return result, fmt.Errorf("listing tenants: %w", err)
	}

	if len(tenants) == 0 {
		log.Info().Msg("no active tenants, running legacy sync")
		target := LegacyTarget()
		r, _ := o.syncTarget(ctx, "global", target, o.sources.ForKey(domain.LegacyResultKey, o.cfg.LegacyAPIKey), runLog)
		result.Merge(domain.LegacyResultKey, target.Name, r)
		return result, nil
	}

	runs, runErr := o.syncTenants(ctx, tenants, runLog)
	for _, run := range runs {
		result.Merge(run.key, run.name, run.result)
	}
	if runErr != nil {
		skipped := len(tenants) - len(runs)
		result.Errors = append(result.Errors, fmt.Sprintf("run cancelled: %d tenants not synced", skipped))
		return result, runErr
	}
	return result, nil
}

// syncTenants returns the completed runs in tenant order.
func (o *Orchestrator) syncTenants(ctx context.Context, tenants []domain.Tenant, runLog domain.SyncLogger) ([]tenantRun, error) {
	runs := make([]tenantRun, len(tenants))
	done := make([]bool, len(tenants))

	if o.cfg.Concurrency < 2 {
		for i, t := range tenants {
			if err := ctx.Err(); err != nil {
				return collect(runs, done), err
			}
			runs[i] = o.syncTenant(ctx, t, runLog)
			done[i] = true
		}
		return runs, nil
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for i, t := range tenants {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			runs[i] = o.syncTenant(ctx, t, runLog)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	completed := collect(runs, done)
	if len(completed) < len(tenants) {
		return completed, ctx.Err()
	}
	return runs, nil
}

func collect(runs []tenantRun, done []bool) []tenantRun {
	out := make([]tenantRun, 0, len(runs))
	for i, ok := range done {
		if ok {
			out = append(out, runs[i])
		}
	}
	return out
}

func (o *Orchestrator) syncTenant(ctx context.Context, t domain.Tenant, runLog domain.SyncLogger) tenantRun {
	run := tenantRun{key: t.Slug, name: t.Name}
	var ran bool
	run.result, ran = o.syncTarget(ctx, t.Scope().String(), TargetFor(t), o.sources.ForKey(t.Slug, t.APIKey), runLog)
	if !ran {
		return run
	}
	// Recorded even when the run failed: the attempt still counts.
	if err := o.registry.MarkSynced(context.WithoutCancel(ctx), t.ID, o.now().UTC()); err != nil {
		run.result.AddError("recording last sync: %v", err)
	}
	return run
}

// syncTarget runs the engine under the target's advisory lock. It reports
// false when the lock could not be taken and the engine did not run.
func (o *Orchestrator) syncTarget(ctx context.Context, lockKey string, target SyncTarget, src domain.EventSource, runLog domain.SyncLogger) (domain.TenantResult, bool) {
	started := o.now()

	if o.lock != nil {
		release, err := o.lock.Acquire(ctx, lockKey, runLog.RunID(), o.cfg.LockTTL)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("tenant", target.Name).Msg("tenant lock unavailable")
			r := domain.TenantResult{}
			if errors.Is(err, domain.ErrSyncInProgress) {
				r.AddError("%s", domain.ErrSyncInProgress.Error())
			} else {
				r.AddError("acquiring lock: %v", err)
			}
			return r, false
		}
		defer release()
	}

	r := o.engine.Sync(ctx, target, src, runLog)
	if o.metrics != nil {
		o.metrics.ObserveTenant(target.Name, r, o.now().Sub(started))
	}
	return r, true
}
