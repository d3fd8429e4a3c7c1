package client

import (
	"errors"

	"github.com/kjstillabower/forecast-service/internal/models"
)

// ErrorKind maps a Fetch error to the caller-facing ErrorKind.
// Anything that is not an auth or location error is an upstream failure.
func ErrorKind(err error) models.ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidAPIKey):
		return models.ErrorKindUnauthorized
	case errors.Is(err, ErrLocationNotFound):
		return models.ErrorKindLocationNotFound
	default:
		return models.ErrorKindUpstreamFailure
	}
}
