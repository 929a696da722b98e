package domain

import (
	"fmt"
	"time"
)

// LegacyResultKey is the per-tenant key used for the unscoped legacy run.
const LegacyResultKey = "legacy"

// KeyCheckSource names sources built only to validate a credential. They are
// never bound to a tenant's circuit breaker.
const KeyCheckSource = "key-check"

// TenantResult is the outcome of reconciling one tenant.
type TenantResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors"`
}

// AddError records a failure message.
func (r *TenantResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AggregateResult sums the tenant results of one run.
type AggregateResult struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Created    int                     `json:"created"`
	Updated    int                     `json:"updated"`
	Deleted    int                     `json:"deleted"`
	Errors     []string                `json:"errors"`
	PerTenant  map[string]TenantResult `json:"per_tenant"`
}

// NewAggregateResult returns an empty result for the given run.
func NewAggregateResult(runID string, startedAt time.Time) AggregateResult {
	return AggregateResult{
		RunID:     runID,
		StartedAt: startedAt,
		Errors:    []string{},
		PerTenant: make(map[string]TenantResult),
	}
}

// Merge folds a tenant result into the aggregate. Error messages are
// prefixed with "[name] " so every failure stays attributable.
func (a *AggregateResult) Merge(key, name string, r TenantResult) {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	a.Created += r.Created
	a.Updated += r.Updated
	a.Deleted += r.Deleted
	for _, msg := range r.Errors {
		a.Errors = append(a.Errors, "["+name+"] "+msg)
	}
	if a.PerTenant == nil {
		a.PerTenant = make(map[string]TenantResult)
	}
	a.PerTenant[key] = r
}
