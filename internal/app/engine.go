package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// SyncTarget names what one engine pass reconciles.
type SyncTarget struct {
	Scope domain.Scope
	Name  string
	// Label groups the target's documents. Empty for the legacy scope.
	Label string
}

// LegacyTarget is the unscoped target used when no tenants exist.
func LegacyTarget() SyncTarget {
	return SyncTarget{Scope: domain.GlobalScope(), Name: "Default"}
}

// TargetFor returns the sync target of a tenant.
func TargetFor(t domain.Tenant) SyncTarget {
	return SyncTarget{Scope: t.Scope(), Name: t.Name, Label: t.Slug}
}

func (t SyncTarget) prefix() string {
	if t.Scope.IsGlobal() {
		return ""
	}
	return "[" + t.Name + "] "
}

func (t SyncTarget) tenantName() string {
	if t.Scope.IsGlobal() {
		return ""
	}
	return t.Name
}

// SyncEngine converges the local documents of one scope to the remote listing.
type SyncEngine struct {
	docs   domain.DocumentStore
	images domain.ImageFetcher
	now    func() time.Time
}

// NewSyncEngine creates an engine. A nil images fetcher disables media sync.
func NewSyncEngine(docs domain.DocumentStore, images domain.ImageFetcher) *SyncEngine {
	return &SyncEngine{docs: docs, images: images, now: time.Now}
}

// Sync fetches every remote event from src and reconciles the target scope.
// A failed fetch leaves local documents untouched. Write failures are
// recorded per item and do not stop the pass.
func (e *SyncEngine) Sync(ctx context.Context, target SyncTarget, src domain.EventSource, runLog domain.SyncLogger) domain.TenantResult {
	result := domain.TenantResult{Errors: []string{}}
	prefix := target.prefix()
	tenant := target.tenantName()
	log := logging.Ctx(ctx).With().Str("scope", target.Scope.String()).Str("tenant", target.Name).Logger()

	runLog.Log(ctx, domain.LevelInfo, domain.ActionStart, prefix+"Sync started", domain.LogExtra{TenantName: tenant})

	events, err := src.FetchEvents(ctx)
	if err != nil {
		log.Error().Err(err).Msg("fetching events")
		runLog.Log(ctx, domain.LevelError, domain.ActionError, prefix+"API fetch failed: "+err.Error(), domain.LogExtra{
			TenantName: tenant,
			Details:    domain.LogDetails{Error: err.Error()},
		})
		result.AddError("%s", err.Error())
		return result
	}

	// Reconciliation is not interrupted once the listing is in hand.
	ctx = context.WithoutCancel(ctx)

	runLog.Log(ctx, domain.LevelInfo, domain.ActionFetched,
		fmt.Sprintf("%sFetched %d events from the remote API", prefix, len(events)),
		domain.LogExtra{TenantName: tenant, Details: domain.LogDetails{Count: len(events)}})

	syncedAt := e.now().UTC()
	seen := make(map[string]struct{}, len(events))

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		seen[ev.ID] = struct{}{}
		e.upsert(ctx, target, ev, syncedAt, &result, runLog)
	}

	locals, err := e.docs.FindAll(ctx, target.Scope)
	if err != nil {
		log.Error().Err(err).Msg("listing local documents")
		result.AddError("listing local documents: %v", err)
		return result
	}

	switch {
	case len(seen) == 0 && len(locals) > 0:
		log.Warn().Int("local", len(locals)).Msg("remote returned no events, skipping orphan deletion")
		runLog.Log(ctx, domain.LevelWarning, domain.ActionSkippedDelete,
			fmt.Sprintf("%sAPI returned 0 events but %d local documents exist, skipping orphan deletion as a safety measure", prefix, len(locals)),
			domain.LogExtra{TenantName: tenant, Details: domain.LogDetails{Count: len(locals)}})
	default:
		for _, doc := range locals {
			if _, ok := seen[doc.RemoteEventID]; ok || doc.RemoteEventID == "" {
				continue
			}
			if err := e.docs.Delete(ctx, doc.LocalID); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
				result.AddError("deleting %q: %v", doc.Title, err)
				runLog.Log(ctx, domain.LevelError, domain.ActionError, prefix+"Delete failed: "+doc.Title, domain.LogExtra{
					RemoteEventID: doc.RemoteEventID,
					EventTitle:    doc.Title,
					TenantName:    tenant,
					Details:       domain.LogDetails{DocumentID: doc.LocalID, Error: err.Error()},
				})
				continue
			}
			result.Deleted++
			runLog.Log(ctx, domain.LevelWarning, domain.ActionDeleted, prefix+"Deleted orphan: "+doc.Title, domain.LogExtra{
				RemoteEventID: doc.RemoteEventID,
				EventTitle:    doc.Title,
				TenantName:    tenant,
				Details:       domain.LogDetails{DocumentID: doc.LocalID},
			})
		}
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Int("errors", len(result.Errors)).
		Msg("sync finished")
	runLog.Log(ctx, domain.LevelInfo, domain.ActionEnd,
		fmt.Sprintf("%sSync completed: created %d, updated %d, deleted %d", prefix, result.Created, result.Updated, result.Deleted),
		domain.LogExtra{TenantName: tenant, Details: domain.LogDetails{
			Created: result.Created,
			Updated: result.Updated,
			Deleted: result.Deleted,
		}})

	return result
}

func (e *SyncEngine) upsert(ctx context.Context, target SyncTarget, ev domain.RemoteEvent, syncedAt time.Time, result *domain.TenantResult, runLog domain.SyncLogger) {
	prefix := target.prefix()
	fields := MapEvent(ev, target.Scope, syncedAt)
	extra := domain.LogExtra{RemoteEventID: ev.ID, EventTitle: fields.Title, TenantName: target.tenantName()}

	fail := func(op string, err error) {
		result.AddError("%s %q: %v", op, fields.Title, err)
		extra.Details.Error = err.Error()
		runLog.Log(ctx, domain.LevelError, domain.ActionError, prefix+"Failed "+op+": "+fields.Title, extra)
	}

	var id int64
	existing, err := e.docs.FindOne(ctx, target.Scope, ev.ID)
	switch {
	case err == nil:
		id = existing.LocalID
		if err := e.docs.Update(ctx, id, fields); err != nil {
			fail("updating", err)
			return
		}
		result.Updated++
		extra.Details.DocumentID = id
		runLog.Log(ctx, domain.LevelInfo, domain.ActionUpdated, prefix+"Updated: "+fields.Title, extra)
	case errors.Is(err, domain.ErrDocumentNotFound):
		id, err = e.docs.Create(ctx, target.Scope, ev.ID, fields)
		if err != nil {
			fail("creating", err)
			return
		}
		result.Created++
		extra.Details.DocumentID = id
		runLog.Log(ctx, domain.LevelInfo, domain.ActionCreated, prefix+"Created: "+fields.Title, extra)
	default:
		fail("looking up", err)
		return
	}

	if target.Label != "" {
		if err := e.docs.AddLabel(ctx, id, target.Label); err != nil {
			result.AddError("labelling %q: %v", fields.Title, err)
		}
	}
	e.syncImage(ctx, target, id, ev, runLog)
}

// syncImage attaches the event's header image. Failures are logged and
// never counted against the run.
func (e *SyncEngine) syncImage(ctx context.Context, target SyncTarget, id int64, ev domain.RemoteEvent, runLog domain.SyncLogger) {
	url := ev.HeaderImage
	if e.images == nil || url == "" {
		return
	}
	skip := func(reason string) {
		runLog.Log(ctx, domain.LevelWarning, domain.ActionImageSkipped, target.prefix()+"Image skipped: "+reason, domain.LogExtra{
			RemoteEventID: ev.ID,
			EventTitle:    ev.Name,
			TenantName:    target.tenantName(),
			Details:       domain.LogDetails{DocumentID: id, URL: url},
		})
	}

	if !e.images.Allowed(url) {
		skip("host not allowed")
		return
	}

	current, ok, err := e.docs.PrimaryImageSource(ctx, id)
	if err != nil {
		skip(err.Error())
		return
	}
	if ok && current == url {
		return
	}

	img, err := e.images.Fetch(ctx, url)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("url", url).Msg("fetching event image")
		skip(err.Error())
		return
	}
	if _, err := e.docs.SetPrimaryImage(ctx, id, img); err != nil {
		skip(err.Error())
	}
}
