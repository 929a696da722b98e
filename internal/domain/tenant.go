package domain

import (
	"strings"
	"time"
)

// TenantStatus represents whether a box office takes part in scheduled syncs.
type TenantStatus string

const (
	StatusActive TenantStatus = "active"
	StatusPaused TenantStatus = "paused"
)

// Valid reports whether s is a known tenant status.
func (s TenantStatus) Valid() bool {
	return s == StatusActive || s == StatusPaused
}

// TenantEvent represents an action that changes a tenant's status.
type TenantEvent string

const (
	EventPause  TenantEvent = "pause"
	EventResume TenantEvent = "resume"
)

// Transition defines a valid status change: an event moves a tenant from Src to Dst.
type Transition struct {
	Event TenantEvent
	Src   TenantStatus
	Dst   TenantStatus
}

// Transitions is the tenant status machine consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventPause, Src: StatusActive, Dst: StatusPaused},
	{Event: EventResume, Src: StatusPaused, Dst: StatusActive},
}

// DefaultCurrency is used when neither the caller nor the upstream account names one.
const DefaultCurrency = "usd"

// Tenant is one box office: an upstream account synced with its own credential.
//
// APIKey holds the plaintext key and is only populated by the registry on reads.
// EncryptedKey is the value persisted by repositories and never leaves the registry.
type Tenant struct {
	ID           string
	Name         string
	Slug         string
	APIKey       string
	EncryptedKey string
	Currency     string
	Status       TenantStatus
	RosterToken  string
	LastSyncAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTenant creates an active tenant. Currency is normalised to lower case.
func NewTenant(id, name, slug, currency string) Tenant {
	now := time.Now().UTC()
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return Tenant{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Currency:  currency,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Scope returns the document scope owned by this tenant.
func (t Tenant) Scope() Scope {
	return TenantScope(t.ID)
}

// StatusFilter selects tenants by status when listing.
type StatusFilter string

const (
	FilterAll    StatusFilter = "all"
	FilterActive StatusFilter = "active"
	FilterPaused StatusFilter = "paused"
)

// ParseStatusFilter maps user input to a filter. "inactive" is accepted as
// an alias for paused; anything unrecognised means all.
func ParseStatusFilter(s string) StatusFilter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return FilterActive
	case "paused", "inactive":
		return FilterPaused
	default:
		return FilterAll
	}
}

// Status returns the concrete status the filter selects, or nil for all.
func (f StatusFilter) Status() *TenantStatus {
	var s TenantStatus
	switch f {
	case FilterActive:
		s = StatusActive
	case FilterPaused:
		s = StatusPaused
	default:
		return nil
	}
	return &s
}

// TenantUpdate lists the mutable tenant fields. Nil pointers are left untouched.
type TenantUpdate struct {
	Name        *string
	APIKey      *string
	Currency    *string
	Status      *TenantStatus
	LastSyncAt  *time.Time
	RosterToken *string
}

// Empty reports whether the update changes nothing.
func (u TenantUpdate) Empty() bool {
	return u.Name == nil && u.APIKey == nil && u.Currency == nil &&
		u.Status == nil && u.LastSyncAt == nil && u.RosterToken == nil
}

// TenantUpdateFromMap builds an update from a loosely typed payload.
// Keys outside the whitelist are ignored.
func TenantUpdateFromMap(fields map[string]string) TenantUpdate {
	var u TenantUpdate
	for k, v := range fields {
		switch k {
		case "name":
			u.Name = &v
		case "api_key":
			u.APIKey = &v
		case "currency":
			u.Currency = &v
		case "status":
			s := TenantStatus(v)
			u.Status = &s
		case "roster_token":
			u.RosterToken = &v
		case "last_sync":
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				ts = ts.UTC()
				u.LastSyncAt = &ts
			}
		}
	}
	return u
}
