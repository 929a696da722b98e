package tickettailor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// BreakerSettings tunes the per-tenant circuit breakers.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerObserver is notified of breaker state changes.
type BreakerObserver interface {
	BreakerStateChanged(name, from, to string)
}

// Breakers holds one circuit breaker per tenant so that an unreachable
// account fails fast on later runs without affecting other tenants.
type Breakers struct {
	settings BreakerSettings
	observer BreakerObserver

	mu     sync.Mutex
	byName map[string]*gobreaker.CircuitBreaker[any]
}

// NewBreakers creates an empty breaker registry. observer may be nil.
func NewBreakers(settings BreakerSettings, observer BreakerObserver) *Breakers {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Minute
	}
	return &Breakers{
		settings: settings,
		observer: observer,
		byName:   make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Wrap guards src with the breaker registered under name. Key checks are
// returned unwrapped.
func (b *Breakers) Wrap(name string, src domain.EventSource) domain.EventSource {
	if name == domain.KeyCheckSource {
		return src
	}
	return &breakerSource{next: src, cb: b.get(name)}
}

// Len returns the number of breakers created so far.
func (b *Breakers) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byName)
}

// State returns the current state of the named breaker.
func (b *Breakers) State(name string) gobreaker.State {
	return b.get(name).State()
}

func (b *Breakers) get(name string) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.byName[name]; ok {
		return cb
	}

	maxFailures := b.settings.MaxFailures
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     b.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger := logging.WithComponent("tickettailor")
			logger.Warn().Str("tenant", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			if b.observer != nil {
				b.observer.BreakerStateChanged(name, from.String(), to.String())
			}
		},
	})
	b.byName[name] = cb
	return cb
}

// countsAsSuccess keeps client-side problems (missing or rejected keys) from
// tripping the breaker; only transport failures, throttling and server
// errors count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, domain.ErrMissingAPIKey) || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Transport() {
		return apiErr.StatusCode != http.StatusTooManyRequests && apiErr.StatusCode < 500
	}
	return false
}

type breakerSource struct {
	next domain.EventSource
	cb   *gobreaker.CircuitBreaker[any]
}

func (s *breakerSource) FetchEvents(ctx context.Context) ([]domain.RemoteEvent, error) {
	return castResult[[]domain.RemoteEvent](s.cb.Execute(func() (any, error) {
		return s.next.FetchEvents(ctx)
	}))
}

func (s *breakerSource) Overview(ctx context.Context) (domain.AccountOverview, error) {
	return castResult[domain.AccountOverview](s.cb.Execute(func() (any, error) {
		return s.next.Overview(ctx)
	}))
}

func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &APIError{Message: fmt.Sprintf("upstream temporarily disabled: %v", err), Err: err}
		}
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}
