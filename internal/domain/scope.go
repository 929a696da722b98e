package domain

// Scope selects which local documents a sync run owns. The zero value is the
// global (legacy, unscoped) scope.
type Scope struct {
	tenantID string
}

// GlobalScope covers documents that predate multi-tenancy and belong to no tenant.
// Lookups in this scope apply no tenant filter at all.
func GlobalScope() Scope {
	return Scope{}
}

// TenantScope covers documents owned by a single tenant.
func TenantScope(tenantID string) Scope {
	return Scope{tenantID: tenantID}
}

// TenantID returns the owning tenant, or false for the global scope.
func (s Scope) TenantID() (string, bool) {
	return s.tenantID, s.tenantID != ""
}

// IsGlobal reports whether s is the unscoped legacy scope.
func (s Scope) IsGlobal() bool {
	return s.tenantID == ""
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "tenant:" + s.tenantID
}
