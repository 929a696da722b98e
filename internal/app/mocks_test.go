package app_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// --- Tenant repository ---

type mockRepo struct {
	mu      sync.Mutex
	tenants map[string]domain.Tenant
	order   []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{tenants: make(map[string]domain.Tenant)}
}

func (m *mockRepo) Create(_ context.Context, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenants {
		if existing.Slug == t.Slug {
			return &domain.SlugConflictError{Slug: t.Slug}
		}
	}
	m.tenants[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *mockRepo) GetBySlug(_ context.Context, slug string) (domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return domain.Tenant{}, domain.ErrTenantNotFound
}

func (m *mockRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Tenant
	for _, id := range m.order {
		t, ok := m.tenants[id]
		if !ok {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, t domain.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tenants[t.ID]
	if !ok {
		return domain.ErrTenantNotFound
	}
	t.Slug = old.Slug
	m.tenants[t.ID] = t
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		return domain.ErrTenantNotFound
	}
	delete(m.tenants, id)
	return nil
}

// --- Cipher ---

// prefixCipher marks values instead of encrypting them so tests can assert
// what the repository received.
type prefixCipher struct {
	fail error
}

func (c prefixCipher) Encrypt(s string) (string, error) {
	if c.fail != nil {
		return "", c.fail
	}
	if s == "" {
		return "", nil
	}
	return "enc:" + s, nil
}

func (prefixCipher) Decrypt(s string) string {
	return strings.TrimPrefix(s, "enc:")
}

// --- Validator ---

type mockValidator struct{}

func (mockValidator) Apply(_ context.Context, current domain.TenantStatus, event domain.TenantEvent) (domain.TenantStatus, error) {
	for _, t := range domain.Transitions {
		if t.Src == current && t.Event == event {
			return t.Dst, nil
		}
	}
	return "", &domain.TransitionError{Event: event, Current: current}
}

// --- Event sources ---

type fakeSource struct {
	events   []domain.RemoteEvent
	err      error
	overview domain.AccountOverview
	calls    int
	// fetched runs after every fetch, before the result is returned.
	fetched func()
}

func (s *fakeSource) FetchEvents(context.Context) ([]domain.RemoteEvent, error) {
	s.calls++
	if s.fetched != nil {
		s.fetched()
	}
	if s.err != nil {
		return nil, s.err
	}
	return slices.Clone(s.events), nil
}

func (s *fakeSource) Overview(context.Context) (domain.AccountOverview, error) {
	if s.err != nil {
		return domain.AccountOverview{}, s.err
	}
	return s.overview, nil
}

// fakeFactory hands out sources by API key.
type fakeFactory struct {
	mu      sync.Mutex
	sources map[string]*fakeSource
	names   []string
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{sources: make(map[string]*fakeSource)}
}

func (f *fakeFactory) set(key string, src *fakeSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[key] = src
}

func (f *fakeFactory) ForKey(name, key string) domain.EventSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	if key == "" {
		return &fakeSource{err: domain.ErrMissingAPIKey}
	}
	if src, ok := f.sources[key]; ok {
		return src
	}
	return &fakeSource{err: errors.New("HTTP 401")}
}

// --- Document store ---

type memDocs struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]*memDoc
	failOn map[string]error // keyed by remote id, applied to writes
}

type memDoc struct {
	doc    domain.Document
	meta   map[string]string
	labels []string
	image  string
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[int64]*memDoc), failOn: make(map[string]error)}
}

func inScope(d domain.Document, scope domain.Scope) bool {
	id, ok := scope.TenantID()
	return !ok || d.TenantID == id
}

func (m *memDocs) FindOne(_ context.Context, scope domain.Scope, remoteID string) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.sortedIDs() {
		d := m.docs[id].doc
		if d.RemoteEventID == remoteID && inScope(d, scope) {
			return d, nil
		}
	}
	return domain.Document{}, domain.ErrDocumentNotFound
}

func (m *memDocs) FindAll(_ context.Context, scope domain.Scope) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Document
	for _, id := range m.sortedIDs() {
		if d := m.docs[id].doc; inScope(d, scope) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) Count(ctx context.Context, scope domain.Scope) (int, error) {
	docs, err := m.FindAll(ctx, scope)
	return len(docs), err
}

func (m *memDocs) Create(_ context.Context, scope domain.Scope, remoteID string, f domain.EventFields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[remoteID]; err != nil {
		return 0, err
	}
	m.nextID++
	tenantID, _ := scope.TenantID()
	doc := &memDoc{meta: make(map[string]string)}
	doc.doc = domain.Document{LocalID: m.nextID, TenantID: tenantID, RemoteEventID: remoteID, CreatedAt: time.Now()}
	applyFields(doc, f)
	m.docs[m.nextID] = doc
	return m.nextID, nil
}

func (m *memDocs) Update(_ context.Context, id int64, f domain.EventFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if err := m.failOn[doc.doc.RemoteEventID]; err != nil {
		return err
	}
	applyFields(doc, f)
	return nil
}

func applyFields(doc *memDoc, f domain.EventFields) {
	d := &doc.doc
	d.Title, d.Description, d.Status = f.Title, f.Description, f.Status
	d.StartAt, d.EndAt, d.VenueName = f.StartAt, f.EndAt, f.VenueName
	d.PriceDisplay, d.MinPrice, d.MaxPrice = f.PriceDisplay, f.MinPrice, f.MaxPrice
	d.Capacity, d.Remaining, d.ImageURL = f.Capacity, f.Remaining, f.ImageURL
	d.RawPayload, d.LastSyncedAt = f.RawPayload, f.LastSyncedAt
	for k, v := range f.Meta {
		doc.meta[k] = v
	}
}

func (m *memDocs) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if err := m.failOn[doc.doc.RemoteEventID]; err != nil {
		return err
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocs) Meta(_ context.Context, id int64) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc.meta, nil
}

func (m *memDocs) SetMeta(_ context.Context, id int64, meta map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	for k, v := range meta {
		doc.meta[k] = v
	}
	return nil
}

func (m *memDocs) AddLabel(_ context.Context, id int64, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if !slices.Contains(doc.labels, label) {
		doc.labels = append(doc.labels, label)
	}
	return nil
}

func (m *memDocs) PrimaryImageSource(_ context.Context, id int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.image == "" {
		return "", false, nil
	}
	return doc.image, true, nil
}

func (m *memDocs) SetPrimaryImage(_ context.Context, id int64, img domain.Image) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return false, domain.ErrDocumentNotFound
	}
	if doc.image == img.SourceURL {
		return false, nil
	}
	doc.image = img.SourceURL
	return true, nil
}

func (m *memDocs) DeleteByTenant(_ context.Context, tenantID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, doc := range m.docs {
		if doc.doc.TenantID == tenantID {
			delete(m.docs, id)
			n++
		}
	}
	return n, nil
}

func (m *memDocs) UnassignTenant(_ context.Context, tenantID, label string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, doc := range m.docs {
		if doc.doc.TenantID == tenantID {
			doc.doc.TenantID = ""
			doc.labels = slices.DeleteFunc(doc.labels, func(l string) bool { return l == label })
			n++
		}
	}
	return n, nil
}

func (m *memDocs) sortedIDs() []int64 {
	ids := make([]int64, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// seed stores a document directly, bypassing the engine.
func (m *memDocs) seed(tenantID, remoteID, title string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.docs[m.nextID] = &memDoc{
		doc:  domain.Document{LocalID: m.nextID, TenantID: tenantID, RemoteEventID: remoteID, Title: title},
		meta: make(map[string]string),
	}
	return m.nextID
}

func (m *memDocs) byRemote(tenantID, remoteID string) (*memDoc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.docs {
		if doc.doc.TenantID == tenantID && doc.doc.RemoteEventID == remoteID {
			return doc, true
		}
	}
	return nil, false
}

// --- Images ---

type fakeImages struct {
	allowed bool
	err     error
	fetched []string
}

func (f *fakeImages) Allowed(string) bool { return f.allowed }

func (f *fakeImages) Fetch(_ context.Context, url string) (domain.Image, error) {
	f.fetched = append(f.fetched, url)
	if f.err != nil {
		return domain.Image{}, f.err
	}
	return domain.Image{SourceURL: url, ContentType: "image/png", Width: 1, Height: 1}, nil
}

// --- Sync log ---

type recordedLog struct {
	level   domain.LogLevel
	action  domain.LogAction
	message string
	extra   domain.LogExtra
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []recordedLog
}

func (r *recordingLogger) Log(_ context.Context, level domain.LogLevel, action domain.LogAction, message string, extra domain.LogExtra) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedLog{level: level, action: action, message: message, extra: extra})
}

func (r *recordingLogger) RunID() string { return "run-test" }

func (r *recordingLogger) actions(action domain.LogAction) []recordedLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedLog
	for _, e := range r.entries {
		if e.action == action {
			out = append(out, e)
		}
	}
	return out
}

type memLogStore struct {
	mu      sync.Mutex
	entries []domain.LogEntry
	cutoff  time.Time
}

func (s *memLogStore) Append(_ context.Context, e domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memLogStore) Entries(_ context.Context, q domain.LogQuery) (domain.LogPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.LogPage{Entries: slices.Clone(s.entries), Total: len(s.entries), Pages: 1}, nil
}

func (s *memLogStore) Runs(context.Context, int) ([]domain.RunSummary, error) { return nil, nil }

func (s *memLogStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func (s *memLogStore) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoff = cutoff
	return 0, nil
}

// --- Lock and metrics ---

type memLock struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLock() *memLock {
	return &memLock{held: make(map[string]string)}
}

func (l *memLock) Acquire(_ context.Context, key, holder string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, domain.ErrSyncInProgress
	}
	l.held[key] = holder
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type recordingMetrics struct {
	mu      sync.Mutex
	tenants []string
	runs    int
}

func (m *recordingMetrics) ObserveTenant(tenant string, _ domain.TenantResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenant)
}

func (m *recordingMetrics) ObserveRun(domain.AggregateResult, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
}
