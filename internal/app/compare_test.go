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

func TestCompareEvents(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	tenant, err := f.registry.Add(ctx, app.AddTenantInput{Name: "Alpha", APIKey: "good-key"})
	require.NoError(t, err)

	f.docs.seed(tenant.ID, "ev_1", "Synced")
	f.docs.seed(tenant.ID, "ev_9", "Orphan")
	f.docs.seed("other", "ev_2", "Other tenant")
	f.sources.set("good-key", &fakeSource{events: remoteEvents("ev_1", "ev_2")})

	rows, err := app.NewCompareService(f.registry, f.docs, f.sources).CompareEvents(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "ev_1", rows[0].RemoteEventID)
	assert.Equal(t, app.CompareSynced, rows[0].Status)
	assert.NotZero(t, rows[0].LocalID)

	assert.Equal(t, "ev_2", rows[1].RemoteEventID)
	assert.Equal(t, app.ComparePending, rows[1].Status, "another tenant's copy does not count")

	assert.Equal(t, "ev_9", rows[2].RemoteEventID)
	assert.Equal(t, app.CompareOrphaned, rows[2].Status)
}

func TestCompareEvents_Errors(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	svc := app.NewCompareService(f.registry, f.docs, f.sources)

	_, err := svc.CompareEvents(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	tenant, err := f.registry.Add(ctx, app.AddTenantInput{Name: "Alpha", APIKey: "good-key"})
	require.NoError(t, err)
	f.sources.set("good-key", &fakeSource{err: errors.New("HTTP 500")})

	_, err = svc.CompareEvents(ctx, tenant.ID)
	assert.ErrorContains(t, err, "HTTP 500")
}
