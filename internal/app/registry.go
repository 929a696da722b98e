package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/boxsync/internal/domain"
)

// TenantRegistry manages box office records. Keys are encrypted before they
// reach the repository and decrypted on every read.
type TenantRegistry struct {
	repo      domain.TenantRepository
	docs      domain.DocumentStore
	cipher    domain.Cipher
	sources   domain.SourceFactory
	validator domain.TransitionValidator
}

// NewTenantRegistry creates a registry with the given adapters.
func NewTenantRegistry(
	repo domain.TenantRepository,
	docs domain.DocumentStore,
	cipher domain.Cipher,
	sources domain.SourceFactory,
	validator domain.TransitionValidator,
) *TenantRegistry {
	return &TenantRegistry{
		repo:      repo,
		docs:      docs,
		cipher:    cipher,
		sources:   sources,
		validator: validator,
	}
}

// AddTenantInput holds the input for Add. Name and Currency default to the
// values reported by the upstream account.
type AddTenantInput struct {
	Name     string
	APIKey   string
	Currency string
}

// Add validates the key against the upstream account and persists a new
// tenant. Nothing is written when validation fails.
func (r *TenantRegistry) Add(ctx context.Context, in AddTenantInput) (domain.Tenant, error) {
	key := strings.TrimSpace(in.APIKey)

	overview, err := r.sources.ForKey(domain.KeyCheckSource, key).Overview(ctx)
	if err != nil {
		return domain.Tenant{}, &domain.KeyValidationError{Err: err}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = overview.BoxOfficeName
	}
	if name == "" {
		name = "Box Office"
	}
	currency := in.Currency
	if strings.TrimSpace(currency) == "" {
		currency = overview.Currency
	}

	slug, err := uniqueSlug(ctx, r.repo, Slugify(name))
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("choosing slug: %w", err)
	}

	id, err := generateID()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("generating tenant id: %w", err)
	}

	tenant := domain.NewTenant(id, name, slug, currency)
	if tenant.EncryptedKey, err = r.cipher.Encrypt(key); err != nil {
		return domain.Tenant{}, fmt.Errorf("encrypting api key: %w", err)
	}

	if err := r.repo.Create(ctx, tenant); err != nil {
		return domain.Tenant{}, fmt.Errorf("creating tenant: %w", err)
	}

	tenant.APIKey = key
	tenant.EncryptedKey = ""
	return tenant, nil
}

// Get returns a tenant with its key decrypted.
func (r *TenantRegistry) Get(ctx context.Context, id string) (domain.Tenant, error) {
	t, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	return r.reveal(t), nil
}

// GetBySlug returns a tenant with its key decrypted.
func (r *TenantRegistry) GetBySlug(ctx context.Context, slug string) (domain.Tenant, error) {
	t, err := r.repo.GetBySlug(ctx, slug)
	if err != nil {
		return domain.Tenant{}, err
	}
	return r.reveal(t), nil
}

// List returns tenants matching filter, oldest first, with keys decrypted.
func (r *TenantRegistry) List(ctx context.Context, filter domain.StatusFilter) ([]domain.Tenant, error) {
	tenants, err := r.repo.List(ctx, domain.ListFilter{Status: filter.Status()})
	if err != nil {
		return nil, err
	}
	for i := range tenants {
		tenants[i] = r.reveal(tenants[i])
	}
	return tenants, nil
}

// Update applies the non-nil fields of u. It reports false when u is empty.
func (r *TenantRegistry) Update(ctx context.Context, id string, u domain.TenantUpdate) (bool, error) {
	if u.Empty() {
		return false, nil
	}

	t, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if u.Name != nil {
		if name := strings.TrimSpace(*u.Name); name != "" {
			t.Name = name
		}
	}
	if u.Currency != nil {
		if c := strings.ToLower(strings.TrimSpace(*u.Currency)); c != "" {
			t.Currency = c
		}
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return false, &domain.InvalidStatusError{Status: *u.Status}
		}
		t.Status = *u.Status
	}
	if u.APIKey != nil {
		if t.EncryptedKey, err = r.cipher.Encrypt(strings.TrimSpace(*u.APIKey)); err != nil {
			return false, fmt.Errorf("encrypting api key: %w", err)
		}
	}
	if u.RosterToken != nil {
		t.RosterToken = *u.RosterToken
	}
	if u.LastSyncAt != nil {
		ts := u.LastSyncAt.UTC()
		t.LastSyncAt = &ts
	}

	if err := r.repo.Update(ctx, t); err != nil {
		return false, fmt.Errorf("updating tenant: %w", err)
	}
	return true, nil
}

// UpdateFromMap applies a loosely typed payload. Unknown keys are ignored.
func (r *TenantRegistry) UpdateFromMap(ctx context.Context, id string, fields map[string]string) (bool, error) {
	return r.Update(ctx, id, domain.TenantUpdateFromMap(fields))
}

// RotateKey validates key against the upstream account, then stores it and
// refreshes the tenant currency.
func (r *TenantRegistry) RotateKey(ctx context.Context, id, key string) (domain.Tenant, error) {
	_, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	key = strings.TrimSpace(key)
	overview, err := r.sources.ForKey(domain.KeyCheckSource, key).Overview(ctx)
	if err != nil {
		return domain.Tenant{}, &domain.KeyValidationError{Err: err}
	}

	u := domain.TenantUpdate{APIKey: &key}
	if overview.Currency != "" {
		u.Currency = &overview.Currency
	}
	if _, err := r.Update(ctx, id, u); err != nil {
		return domain.Tenant{}, err
	}
	return r.Get(ctx, id)
}

// Transition applies a status event such as pause or resume.
func (r *TenantRegistry) Transition(ctx context.Context, id string, event domain.TenantEvent) (domain.Tenant, error) {
	t, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	status, err := r.validator.Apply(ctx, t.Status, event)
	if err != nil {
		return domain.Tenant{}, err
	}

	t.Status = status
	if err := r.repo.Update(ctx, t); err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant: %w", err)
	}
	return r.reveal(t), nil
}

// Delete removes a tenant. With cascade its documents are deleted;
// otherwise they are kept, unassigned and stripped of the tenant label.
func (r *TenantRegistry) Delete(ctx context.Context, id string, cascade bool) (bool, error) {
	t, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if cascade {
		_, err = r.docs.DeleteByTenant(ctx, t.ID)
	} else {
		_, err = r.docs.UnassignTenant(ctx, t.ID, t.Slug)
	}
	if err != nil {
		return false, fmt.Errorf("releasing tenant documents: %w", err)
	}

	if err := r.repo.Delete(ctx, t.ID); err != nil {
		return false, err
	}
	return true, nil
}

// EventCount returns the number of documents owned by the tenant.
func (r *TenantRegistry) EventCount(ctx context.Context, id string) (int, error) {
	return r.docs.Count(ctx, domain.TenantScope(id))
}

// MarkSynced records the time of the tenant's latest sync attempt.
func (r *TenantRegistry) MarkSynced(ctx context.Context, id string, at time.Time) error {
	_, err := r.Update(ctx, id, domain.TenantUpdate{LastSyncAt: &at})
	return err
}

func (r *TenantRegistry) reveal(t domain.Tenant) domain.Tenant {
	t.APIKey = r.cipher.Decrypt(t.EncryptedKey)
	t.EncryptedKey = ""
	return t
}
