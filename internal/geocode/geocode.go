// Package geocode resolves free-form addresses to coordinates.
package geocode

import (
	"context"
	"errors"

	"github.com/kjstillabower/forecast-service/internal/models"
)

// ErrNotFound is returned when the provider has no match for the address.
var ErrNotFound = errors.New("geocode: no match for address")

// Resolver maps an address to a coordinate. One upstream call, no retries.
type Resolver interface {
	Resolve(ctx context.Context, address string) (models.Coordinate, error)
}
