package domain

import (
	"context"
	"time"
)

// TenantRepository defines the persistence contract for tenants.
// Repositories store Tenant.EncryptedKey and ignore Tenant.APIKey.
type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) error
	GetByID(ctx context.Context, id string) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	List(ctx context.Context, filter ListFilter) ([]Tenant, error)
	Update(ctx context.Context, tenant Tenant) error
	Delete(ctx context.Context, id string) error
}

// ListFilter holds optional criteria for listing tenants.
// Results are ordered by creation time, oldest first.
type ListFilter struct {
	Status *TenantStatus
	Limit  int
	Offset int
}

// TransitionValidator checks tenant status changes against the status machine.
type TransitionValidator interface {
	Apply(ctx context.Context, current TenantStatus, event TenantEvent) (TenantStatus, error)
}

// Cipher encrypts credentials at rest. Decrypt returns unmarked input
// unchanged and returns "" for corrupt ciphertext.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) string
}

// EventSource is the upstream API bound to one tenant's credential.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]RemoteEvent, error)
	Overview(ctx context.Context) (AccountOverview, error)
}

// SourceFactory builds an EventSource for a credential. The name identifies
// the owner in logs, metrics and breaker state.
type SourceFactory interface {
	ForKey(name, apiKey string) EventSource
}

// DocumentStore is the local store of mirrored events.
// Lookups in the global scope apply no tenant filter.
type DocumentStore interface {
	FindOne(ctx context.Context, scope Scope, remoteID string) (Document, error)
	FindAll(ctx context.Context, scope Scope) ([]Document, error)
	Count(ctx context.Context, scope Scope) (int, error)
	Create(ctx context.Context, scope Scope, remoteID string, fields EventFields) (int64, error)
	Update(ctx context.Context, id int64, fields EventFields) error
	Delete(ctx context.Context, id int64) error

	Meta(ctx context.Context, id int64) (map[string]string, error)
	SetMeta(ctx context.Context, id int64, meta map[string]string) error
	AddLabel(ctx context.Context, id int64, label string) error

	// PrimaryImageSource returns the source URL of the current primary image.
	PrimaryImageSource(ctx context.Context, id int64) (string, bool, error)
	// SetPrimaryImage attaches img. It is a no-op returning false when the
	// stored image already came from img.SourceURL.
	SetPrimaryImage(ctx context.Context, id int64, img Image) (bool, error)

	DeleteByTenant(ctx context.Context, tenantID string) (int, error)
	UnassignTenant(ctx context.Context, tenantID, label string) (int, error)
}

// ImageFetcher downloads images from allow-listed hosts only.
type ImageFetcher interface {
	Allowed(rawURL string) bool
	Fetch(ctx context.Context, rawURL string) (Image, error)
}

// SyncLogger records the progress of one run. Implementations are chosen at
// construction; the disabled one does nothing.
type SyncLogger interface {
	Log(ctx context.Context, level LogLevel, action LogAction, message string, extra LogExtra)
	RunID() string
}

// LogStore persists sync log entries.
type LogStore interface {
	Append(ctx context.Context, entry LogEntry) error
	Entries(ctx context.Context, query LogQuery) (LogPage, error)
	Runs(ctx context.Context, limit int) ([]RunSummary, error)
	Clear(ctx context.Context) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotStore keeps the result of the most recent run.
type SnapshotStore interface {
	SaveLastSync(ctx context.Context, result AggregateResult) error
	LastSync(ctx context.Context) (AggregateResult, bool, error)
}

// SyncLock is an advisory lock with expiry. Acquire returns ErrSyncInProgress
// when another holder owns key.
type SyncLock interface {
	Acquire(ctx context.Context, key, holder string, ttl time.Duration) (release func(), err error)
}

// SyncTrigger requests an asynchronous run of all tenants.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, reason string) (int64, error)
}

// SyncMetrics observes run outcomes.
type SyncMetrics interface {
	ObserveTenant(tenant string, result TenantResult, duration time.Duration)
	ObserveRun(result AggregateResult, duration time.Duration)
}
