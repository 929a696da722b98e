package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/boxsync/internal/app"
	"github.com/neomorfeo/boxsync/internal/domain"
)

func remoteEvents(ids ...string) []domain.RemoteEvent {
	out := make([]domain.RemoteEvent, len(ids))
	for i, id := range ids {
		out[i] = domain.RemoteEvent{ID: id, Name: "Event " + id, Status: "published"}
	}
	return out
}

func tenantTarget(id, name string) app.SyncTarget {
	return app.SyncTarget{Scope: domain.TenantScope(id), Name: name, Label: name}
}

func TestEngine_CreatesThenUpdates(t *testing.T) {
	docs := newMemDocs()
	engine := app.NewSyncEngine(docs, nil)
	src := &fakeSource{events: remoteEvents("ev_1", "ev_2")}
	target := tenantTarget("t-a", "alpha")
	ctx := context.Background()

	first := engine.Sync(ctx, target, src, &recordingLogger{})
	assert.Equal(t, 2, first.Created)
	assert.Zero(t, first.Updated)
	assert.Zero(t, first.Deleted)
	assert.Empty(t, first.Errors)

	// Updates always refresh last_synced_at, so an unchanged listing reports
	// one update per document.
	second := engine.Sync(ctx, target, src, &recordingLogger{})
	assert.Zero(t, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Zero(t, second.Deleted)

	doc, ok := docs.byRemote("t-a", "ev_1")
	require.True(t, ok)
	assert.Equal(t, []string{"alpha"}, doc.labels)
	assert.Equal(t, "ev_1", doc.meta[app.MetaRemoteEventID])
	assert.False(t, doc.doc.LastSyncedAt.IsZero())
}

func TestEngine_DeletesOrphans(t *testing.T) {
	docs := newMemDocs()
	for _, id := range []string{"1", "2", "3"} {
		docs.seed("t-a", id, "Event "+id)
	}
	engine := app.NewSyncEngine(docs, nil)
	runLog := &recordingLogger{}

	r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"),
		&fakeSource{events: remoteEvents("1", "3")}, runLog)

	assert.Zero(t, r.Created)
	assert.Equal(t, 2, r.Updated)
	assert.Equal(t, 1, r.Deleted)
	_, ok := docs.byRemote("t-a", "2")
	assert.False(t, ok, "orphan should be deleted")

	deleted := runLog.actions(domain.ActionDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "2", deleted[0].extra.RemoteEventID)
	assert.Equal(t, domain.LevelWarning, deleted[0].level)
}

func TestEngine_SafetyGuard(t *testing.T) {
	docs := newMemDocs()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		docs.seed("t-a", id, "Event "+id)
	}
	engine := app.NewSyncEngine(docs, nil)
	runLog := &recordingLogger{}

	r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"), &fakeSource{}, runLog)

	assert.Zero(t, r.Deleted)
	assert.Empty(t, r.Errors)
	n, _ := docs.Count(context.Background(), domain.TenantScope("t-a"))
	assert.Equal(t, 5, n)

	skipped := runLog.actions(domain.ActionSkippedDelete)
	require.Len(t, skipped, 1)
	assert.Equal(t, domain.LevelWarning, skipped[0].level)
	assert.Contains(t, skipped[0].message, "[alpha]")
}

func TestEngine_EmptyOnEmptyIsSilent(t *testing.T) {
	engine := app.NewSyncEngine(newMemDocs(), nil)
	runLog := &recordingLogger{}

	r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"), &fakeSource{}, runLog)

	assert.Equal(t, domain.TenantResult{Errors: []string{}}, r)
	assert.Empty(t, runLog.actions(domain.ActionSkippedDelete))
}

func TestEngine_FetchErrorLeavesDocuments(t *testing.T) {
	docs := newMemDocs()
	docs.seed("t-a", "1", "Keep me")
	engine := app.NewSyncEngine(docs, nil)
	runLog := &recordingLogger{}

	r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"),
		&fakeSource{err: errors.New("HTTP 503")}, runLog)

	assert.Equal(t, []string{"HTTP 503"}, r.Errors)
	assert.Zero(t, r.Created+r.Updated+r.Deleted)
	_, ok := docs.byRemote("t-a", "1")
	assert.True(t, ok)
	assert.Len(t, runLog.actions(domain.ActionError), 1)
}

func TestEngine_SkipsEventsWithoutID(t *testing.T) {
	engine := app.NewSyncEngine(newMemDocs(), nil)

	events := append(remoteEvents("ev_1"), domain.RemoteEvent{Name: "No id"})
	r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"), &fakeSource{events: events}, &recordingLogger{})

	assert.Equal(t, 1, r.Created)
	assert.Empty(t, r.Errors)
}

func TestEngine_TenantIsolation(t *testing.T) {
	docs := newMemDocs()
	engine := app.NewSyncEngine(docs, nil)
	ctx := context.Background()
	alpha := tenantTarget("t-a", "alpha")
	beta := tenantTarget("t-b", "beta")

	engine.Sync(ctx, alpha, &fakeSource{events: remoteEvents("shared", "a_only")}, &recordingLogger{})
	engine.Sync(ctx, beta, &fakeSource{events: remoteEvents("shared")}, &recordingLogger{})

	a, ok := docs.byRemote("t-a", "shared")
	require.True(t, ok)
	b, ok := docs.byRemote("t-b", "shared")
	require.True(t, ok)
	assert.NotEqual(t, a.doc.LocalID, b.doc.LocalID)

	// Alpha drops "shared"; beta's copy must survive.
	r := engine.Sync(ctx, alpha, &fakeSource{events: remoteEvents("a_only")}, &recordingLogger{})
	assert.Equal(t, 1, r.Deleted)
	_, ok = docs.byRemote("t-b", "shared")
	assert.True(t, ok)
	_, ok = docs.byRemote("t-a", "shared")
	assert.False(t, ok)
}

func TestEngine_ReappearingEventIsFreshCreate(t *testing.T) {
	docs := newMemDocs()
	engine := app.NewSyncEngine(docs, nil)
	ctx := context.Background()
	target := tenantTarget("t-a", "alpha")

	engine.Sync(ctx, target, &fakeSource{events: remoteEvents("ev_1", "ev_2")}, &recordingLogger{})
	first, _ := docs.byRemote("t-a", "ev_1")
	firstID := first.doc.LocalID

	engine.Sync(ctx, target, &fakeSource{events: remoteEvents("ev_2")}, &recordingLogger{})
	r := engine.Sync(ctx, target, &fakeSource{events: remoteEvents("ev_1", "ev_2")}, &recordingLogger{})

	assert.Equal(t, 1, r.Created)
	again, ok := docs.byRemote("t-a", "ev_1")
	require.True(t, ok)
	assert.NotEqual(t, firstID, again.doc.LocalID)
}

func TestEngine_PersistenceErrorsAccumulate(t *testing.T) {
	docs := newMemDocs()
	docs.failOn["bad"] = errors.New("disk full")
	engine := app.NewSyncEngine(docs, nil)

	r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"),
		&fakeSource{events: remoteEvents("ok_1", "bad", "ok_2")}, &recordingLogger{})

	assert.Equal(t, 2, r.Created)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "disk full")
}

func TestEngine_LegacyScopeSeesEverything(t *testing.T) {
	docs := newMemDocs()
	docs.seed("", "old", "Legacy")
	docs.seed("t-a", "tenant_doc", "Tenant owned")
	engine := app.NewSyncEngine(docs, nil)
	runLog := &recordingLogger{}

	r := engine.Sync(context.Background(), app.LegacyTarget(),
		&fakeSource{events: remoteEvents("old")}, runLog)

	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 1, r.Deleted)
	for _, e := range runLog.entries {
		assert.NotContains(t, e.message, "[Default]")
	}
}

func TestEngine_Images(t *testing.T) {
	docs := newMemDocs()
	images := &fakeImages{allowed: true}
	engine := app.NewSyncEngine(docs, images)
	ctx := context.Background()
	target := tenantTarget("t-a", "alpha")

	events := remoteEvents("ev_1")
	events[0].HeaderImage = "https://cdn.tickettailor.com/a.png"
	src := &fakeSource{events: events}

	engine.Sync(ctx, target, src, &recordingLogger{})
	engine.Sync(ctx, target, src, &recordingLogger{})

	assert.Equal(t, []string{"https://cdn.tickettailor.com/a.png"}, images.fetched,
		"unchanged source must not be fetched again")
	doc, _ := docs.byRemote("t-a", "ev_1")
	assert.Equal(t, "https://cdn.tickettailor.com/a.png", doc.image)
}

func TestEngine_ImageFailuresAreWarnings(t *testing.T) {
	tests := []struct {
		name   string
		images *fakeImages
	}{
		{"disallowed host", &fakeImages{allowed: false}},
		{"fetch error", &fakeImages{allowed: true, err: errors.New("timeout")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := app.NewSyncEngine(newMemDocs(), tt.images)
			runLog := &recordingLogger{}
			events := remoteEvents("ev_1")
			events[0].HeaderImage = "https://evil.example.com/x.png"

			r := engine.Sync(context.Background(), tenantTarget("t-a", "alpha"), &fakeSource{events: events}, runLog)

			assert.Equal(t, 1, r.Created)
			assert.Empty(t, r.Errors)
			skipped := runLog.actions(domain.ActionImageSkipped)
			require.Len(t, skipped, 1)
			assert.Equal(t, "https://evil.example.com/x.png", skipped[0].extra.Details.URL)
		})
	}
}
