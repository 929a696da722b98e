package fsm

import (
	"context"
	"errors"
	"slices"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/boxsync/internal/domain"
)

var _ domain.TransitionValidator = (*Validator)(nil)

// events mirrors domain.Transitions in looplab/fsm form.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	out := make([]loopfsm.EventDesc, 0, len(domain.Transitions))
	for _, t := range domain.Transitions {
		out = append(out, loopfsm.EventDesc{
			Name: string(t.Event),
			Src:  []string{string(t.Src)},
			Dst:  string(t.Dst),
		})
	}
	return out
}

// Validator checks tenant status changes with a throwaway FSM seeded with the
// tenant's current status.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Apply returns the status reached by event, or a domain.TransitionError
// when event is not allowed from current.
func (v *Validator) Apply(ctx context.Context, current domain.TenantStatus, event domain.TenantEvent) (domain.TenantStatus, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) {
			return "", &domain.TransitionError{Event: event, Current: current}
		}
		return "", err
	}

	return domain.TenantStatus(machine.Current()), nil
}

// Available lists the events that may be applied from current, sorted.
func (v *Validator) Available(current domain.TenantStatus) []domain.TenantEvent {
	machine := loopfsm.NewFSM(string(current), events, nil)
	names := machine.AvailableTransitions()
	slices.Sort(names)

	out := make([]domain.TenantEvent, len(names))
	for i, n := range names {
		out[i] = domain.TenantEvent(n)
	}
	return out
}
