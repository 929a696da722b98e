package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrMissingAPIKey     = errors.New("api key is not configured")
	ErrPageLimitExceeded = errors.New("pagination page limit exceeded")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrNothingToUpdate   = errors.New("no updatable fields supplied")
)

// SlugConflictError is returned when a tenant slug is already in use.
type SlugConflictError struct {
	Slug string
}

func (e *SlugConflictError) Error() string {
	return fmt.Sprintf("slug %q is already in use", e.Slug)
}

// TransitionError is returned when a status transition is not allowed.
type TransitionError struct {
	Event   TenantEvent
	Current TenantStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// InvalidStatusError is returned when an update names an unknown status.
type InvalidStatusError struct {
	Status TenantStatus
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("unknown tenant status %q", e.Status)
}

// KeyValidationError is returned when the upstream service rejects an API key.
type KeyValidationError struct {
	Err error
}

func (e *KeyValidationError) Error() string {
	return "api key validation failed: " + e.Err.Error()
}

func (e *KeyValidationError) Unwrap() error {
	return e.Err
}
