package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/boxsync/internal/adapter/credential"
	"github.com/neomorfeo/boxsync/internal/app"
	"github.com/neomorfeo/boxsync/internal/domain"
)

// StatusMachine lists the events a tenant may take from its current status.
type StatusMachine interface {
	Available(current domain.TenantStatus) []domain.TenantEvent
}

// Services are the application services exposed over HTTP.
type Services struct {
	Registry  *app.TenantRegistry
	Compare   *app.CompareService
	Logs      *app.LogService
	Snapshots domain.SnapshotStore
	Trigger   domain.SyncTrigger
	Machine   StatusMachine
}

// TenantResponse is the API representation of a tenant. The API key is
// always masked.
type TenantResponse struct {
	ID         string   `json:"id" doc:"Unique identifier"`
	Name       string   `json:"name" doc:"Display name"`
	Slug       string   `json:"slug" doc:"URL-friendly identifier, also used as the event label"`
	Status     string   `json:"status" doc:"active or paused"`
	Currency   string   `json:"currency" doc:"Lower-case currency code"`
	APIKey     string   `json:"api_key" doc:"Masked API key"`
	LastSyncAt string   `json:"last_sync_at,omitempty" doc:"Last completed sync (RFC 3339)"`
	EventCount *int     `json:"event_count,omitempty" doc:"Number of local events owned by the tenant"`
	Actions    []string `json:"actions" doc:"Status events currently allowed"`
	CreatedAt  string   `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
	UpdatedAt  string   `json:"updated_at" doc:"Last update timestamp (RFC 3339)"`
}

func (s Services) toTenantResponse(t domain.Tenant) TenantResponse {
	resp := TenantResponse{
		ID:        t.ID,
		Name:      t.Name,
		Slug:      t.Slug,
		Status:    string(t.Status),
		Currency:  t.Currency,
		APIKey:    credential.Mask(t.APIKey),
		Actions:   []string{},
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.LastSyncAt != nil {
		resp.LastSyncAt = t.LastSyncAt.UTC().Format(time.RFC3339)
	}
	if s.Machine != nil {
		for _, ev := range s.Machine.Available(t.Status) {
			resp.Actions = append(resp.Actions, string(ev))
		}
	}
	return resp
}

// --- Add Tenant ---

type AddTenantInput struct {
	Body struct {
		Name     string `json:"name,omitempty" maxLength:"255" doc:"Display name; defaults to the upstream box office name"`
		APIKey   string `json:"api_key" minLength:"1" doc:"Upstream API key, validated before saving"`
		Currency string `json:"currency,omitempty" maxLength:"3" doc:"Currency code; defaults to the upstream account currency"`
	}
}

type TenantOutput struct {
	Body TenantResponse
}

// --- Get / List ---

type TenantIDInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type ListTenantsInput struct {
	Status string `query:"status" required:"false" doc:"active, paused (alias inactive) or all"`
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

// --- Update ---

type UpdateTenantInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Name     *string `json:"name,omitempty" maxLength:"255" doc:"Display name"`
		Currency *string `json:"currency,omitempty" maxLength:"3" doc:"Currency code"`
		APIKey   *string `json:"api_key,omitempty" doc:"Replacement API key, stored without validation"`
	}
}

// --- Rotate Key ---

type RotateKeyInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		APIKey string `json:"api_key" minLength:"1" doc:"New upstream API key"`
	}
}

// --- Transition ---

type TransitionInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Event string `json:"event" enum:"pause,resume" doc:"Status event"`
	}
}

// --- Delete ---

type DeleteTenantInput struct {
	ID           string `path:"id" doc:"Tenant ID"`
	DeleteEvents bool   `query:"delete_events" required:"false" doc:"Delete the tenant's events instead of leaving them unassigned"`
}

type DeleteTenantOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

// --- Compare ---

type CompareRowResponse struct {
	RemoteEventID string `json:"remote_event_id"`
	Title         string `json:"title"`
	RemoteStatus  string `json:"remote_status,omitempty"`
	LocalID       int64  `json:"local_id,omitempty"`
	LastSyncedAt  string `json:"last_synced_at,omitempty"`
	SyncStatus    string `json:"sync_status" enum:"synced,pending,orphaned"`
}

type CompareOutput struct {
	Body []CompareRowResponse
}

// RegisterTenants adds the tenant routes to api.
func RegisterTenants(api huma.API, s Services) {
	huma.Register(api, huma.Operation{
		OperationID: "add-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Add a box office",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *AddTenantInput) (*TenantOutput, error) {
		tenant, err := s.Registry.Add(ctx, app.AddTenantInput{
			Name:     input.Body.Name,
			APIKey:   input.Body.APIKey,
			Currency: input.Body.Currency,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TenantOutput{Body: s.toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List box offices",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		tenants, err := s.Registry.List(ctx, domain.ParseStatusFilter(input.Status))
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TenantResponse, len(tenants))
		for i, t := range tenants {
			resp[i] = s.toTenantResponse(t)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a box office with its event count",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
		tenant, err := s.Registry.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		count, err := s.Registry.EventCount(ctx, tenant.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := s.toTenantResponse(tenant)
		resp.EventCount = &count
		return &TenantOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Update a box office",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *UpdateTenantInput) (*TenantOutput, error) {
		changed, err := s.Registry.Update(ctx, input.ID, domain.TenantUpdate{
			Name:     input.Body.Name,
			Currency: input.Body.Currency,
			APIKey:   input.Body.APIKey,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		if !changed {
			return nil, toHumaError(domain.ErrNothingToUpdate)
		}
		tenant, err := s.Registry.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TenantOutput{Body: s.toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rotate-tenant-key",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/key",
		Summary:     "Replace the API key after validating it upstream",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *RotateKeyInput) (*TenantOutput, error) {
		tenant, err := s.Registry.RotateKey(ctx, input.ID, input.Body.APIKey)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TenantOutput{Body: s.toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/events",
		Summary:     "Pause or resume a box office",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TransitionInput) (*TenantOutput, error) {
		tenant, err := s.Registry.Transition(ctx, input.ID, domain.TenantEvent(input.Body.Event))
		if err != nil {
			return nil, toHumaError(err)
		}
		return &TenantOutput{Body: s.toTenantResponse(tenant)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Remove a box office",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *DeleteTenantInput) (*DeleteTenantOutput, error) {
		deleted, err := s.Registry.Delete(ctx, input.ID, input.DeleteEvents)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &DeleteTenantOutput{}
		out.Body.Deleted = deleted
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compare-tenant-events",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/compare",
		Summary:     "Compare upstream events with local documents",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *TenantIDInput) (*CompareOutput, error) {
		rows, err := s.Compare.CompareEvents(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]CompareRowResponse, len(rows))
		for i, r := range rows {
			resp[i] = CompareRowResponse{
				RemoteEventID: r.RemoteEventID,
				Title:         r.Title,
				RemoteStatus:  r.RemoteStatus,
				LocalID:       r.LocalID,
				SyncStatus:    string(r.Status),
			}
			if !r.LastSyncedAt.IsZero() {
				resp[i].LastSyncedAt = r.LastSyncedAt.UTC().Format(time.RFC3339)
			}
		}
		return &CompareOutput{Body: resp}, nil
	})
}
