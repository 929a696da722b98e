package http

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/boxsync/internal/adapter/tickettailor"
	"github.com/neomorfeo/boxsync/internal/domain"
	"github.com/neomorfeo/boxsync/internal/logging"
)

// toHumaError translates domain and client errors to Huma HTTP errors.
func toHumaError(err error) error {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return huma.Error404NotFound("tenant not found")
	case errors.Is(err, domain.ErrNothingToUpdate):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrMissingAPIKey):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, domain.ErrSyncInProgress):
		return huma.Error409Conflict(err.Error())
	}

	var slugErr *domain.SlugConflictError
	if errors.As(err, &slugErr) {
		return huma.Error409Conflict(slugErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var statusErr *domain.InvalidStatusError
	if errors.As(err, &statusErr) {
		return huma.Error422UnprocessableEntity(statusErr.Error())
	}

	var keyErr *domain.KeyValidationError
	if errors.As(err, &keyErr) {
		return huma.Error422UnprocessableEntity(keyErr.Error())
	}

	var apiErr *tickettailor.APIError
	if errors.As(err, &apiErr) {
		return huma.Error502BadGateway(apiErr.Error())
	}

	log := logging.WithComponent("http")
	log.Error().Err(err).Msg("unhandled api error")
	return huma.Error500InternalServerError("internal server error")
}
