package river

import (
	"context"
	"fmt"

	"github.com/neomorfeo/boxsync/internal/domain"
)

var _ domain.SyncTrigger = (*Trigger)(nil)

// Trigger enqueues on-demand sync runs.
type Trigger struct {
	client *Client
}

func NewTrigger(client *Client) *Trigger {
	return &Trigger{client: client}
}

// TriggerSync enqueues a run and returns its job ID. The run itself happens
// on the sync queue after any run already in progress.
func (t *Trigger) TriggerSync(ctx context.Context, reason string) (int64, error) {
	res, err := t.client.Insert(ctx, SyncJobArgs{Reason: reason}, nil)
	if err != nil {
		return 0, fmt.Errorf("enqueuing sync job: %w", err)
	}
	return res.Job.ID, nil
}
