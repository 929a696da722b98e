package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/boxsync/internal/app"
	"github.com/neomorfeo/boxsync/internal/domain"
)

// --- Trigger ---

type TriggerSyncOutput struct {
	Body struct {
		JobID  int64  `json:"job_id" doc:"Queued job ID"`
		Status string `json:"status" doc:"Always queued"`
	}
}

// --- Last Sync ---

type LastSyncOutput struct {
	Body domain.AggregateResult
}

// --- Logs ---

type ListLogsInput struct {
	Page    int    `query:"page" required:"false" default:"1" minimum:"1" doc:"Page number"`
	PerPage int    `query:"per_page" required:"false" default:"50" minimum:"1" maximum:"500" doc:"Entries per page"`
	RunID   string `query:"run_id" required:"false" doc:"Only entries of this run"`
}

type LogEntryResponse struct {
	ID            int64             `json:"id"`
	RunID         string            `json:"run_id"`
	Timestamp     string            `json:"timestamp"`
	Level         string            `json:"level"`
	Action        string            `json:"action"`
	RemoteEventID string            `json:"remote_event_id,omitempty"`
	EventTitle    string            `json:"event_title,omitempty"`
	TenantName    string            `json:"tenant_name,omitempty"`
	Message       string            `json:"message"`
	Details       domain.LogDetails `json:"details"`
}

type ListLogsOutput struct {
	Body struct {
		Entries []LogEntryResponse `json:"entries"`
		Total   int                `json:"total"`
		Pages   int                `json:"pages"`
	}
}

type ListRunsInput struct {
	Limit int `query:"limit" required:"false" default:"50" minimum:"1" maximum:"500" doc:"Max runs"`
}

type RunResponse struct {
	RunID      string `json:"run_id"`
	Started    string `json:"started"`
	Ended      string `json:"ended"`
	EntryCount int    `json:"entry_count"`
}

type ListRunsOutput struct {
	Body []RunResponse
}

// RegisterSync adds the sync trigger, snapshot and log routes to api.
func RegisterSync(api huma.API, s Services) {
	huma.Register(api, huma.Operation{
		OperationID:   "trigger-sync",
		Method:        http.MethodPost,
		Path:          "/api/v1/sync",
		Summary:       "Queue a sync of every active box office",
		Tags:          []string{"Sync"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, _ *struct{}) (*TriggerSyncOutput, error) {
		id, err := s.Trigger.TriggerSync(ctx, "manual")
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &TriggerSyncOutput{}
		out.Body.JobID = id
		out.Body.Status = "queued"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "last-sync",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/last",
		Summary:     "Result of the most recent sync",
		Tags:        []string{"Sync"},
	}, func(ctx context.Context, _ *struct{}) (*LastSyncOutput, error) {
		result, ok, err := s.Snapshots.LastSync(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		if !ok {
			return nil, huma.Error404NotFound("no sync has completed yet")
		}
		return &LastSyncOutput{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sync-logs",
		Method:      http.MethodGet,
		Path:        "/api/v1/logs",
		Summary:     "Sync log entries, newest first",
		Tags:        []string{"Sync log"},
	}, func(ctx context.Context, input *ListLogsInput) (*ListLogsOutput, error) {
		page, err := s.Logs.Entries(ctx, domain.LogQuery{
			Page:    input.Page,
			PerPage: input.PerPage,
			RunID:   input.RunID,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ListLogsOutput{}
		out.Body.Total = page.Total
		out.Body.Pages = page.Pages
		out.Body.Entries = make([]LogEntryResponse, len(page.Entries))
		for i, e := range page.Entries {
			out.Body.Entries[i] = LogEntryResponse{
				ID:            e.ID,
				RunID:         e.RunID,
				Timestamp:     e.Timestamp.UTC().Format(time.RFC3339),
				Level:         string(e.Level),
				Action:        string(e.Action),
				RemoteEventID: e.RemoteEventID,
				EventTitle:    e.EventTitle,
				TenantName:    e.TenantName,
				Message:       e.Message,
				Details:       e.Details,
			}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "clear-sync-logs",
		Method:        http.MethodDelete,
		Path:          "/api/v1/logs",
		Summary:       "Delete every sync log entry",
		Tags:          []string{"Sync log"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if err := s.Logs.Clear(ctx); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sync-runs",
		Method:      http.MethodGet,
		Path:        "/api/v1/logs/runs",
		Summary:     "Sync runs, newest first",
		Tags:        []string{"Sync log"},
	}, func(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
		limit := input.Limit
		if limit < 1 {
			limit = app.DefaultRunsLimit
		}
		runs, err := s.Logs.Runs(ctx, limit)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]RunResponse, len(runs))
		for i, r := range runs {
			resp[i] = RunResponse{
				RunID:      r.RunID,
				Started:    r.StartedAt.UTC().Format(time.RFC3339),
				Ended:      r.EndedAt.UTC().Format(time.RFC3339),
				EntryCount: r.EntryCount,
			}
		}
		return &ListRunsOutput{Body: resp}, nil
	})
}
