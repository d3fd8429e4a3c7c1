package geocode

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/kjstillabower/forecast-service/internal/models"
	"github.com/kjstillabower/forecast-service/internal/observability"
)

const googleBackend = "google"

// GoogleGeocoder implements Resolver on top of the Google Geocoding API.
// The underlying client keeps its key in a package variable, so only one
// GoogleGeocoder should exist per process.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder configures the Google client with apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

type googleResult struct {
	loc geocoder.Location
	err error
}

// Resolve geocodes address. The Google client is not context-aware, so the
// lookup runs in a goroutine and Resolve returns early if ctx is done.
func (g *GoogleGeocoder) Resolve(ctx context.Context, address string) (models.Coordinate, error) {
	done := make(chan googleResult, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{Street: address})
		done <- googleResult{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		observability.GeocodeCallsTotal.WithLabelValues(googleBackend, "error").Inc()
		return models.Coordinate{}, fmt.Errorf("google geocode: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			// The client reports "no results" as an error; it surfaces as not found either way.
			observability.GeocodeCallsTotal.WithLabelValues(googleBackend, "not_found").Inc()
			return models.Coordinate{}, fmt.Errorf("%w: %v", ErrNotFound, r.err)
		}
		if r.loc.Latitude == 0 && r.loc.Longitude == 0 {
			observability.GeocodeCallsTotal.WithLabelValues(googleBackend, "not_found").Inc()
			return models.Coordinate{}, ErrNotFound
		}
		observability.GeocodeCallsTotal.WithLabelValues(googleBackend, "found").Inc()
		return models.Coordinate{Lat: r.loc.Latitude, Lon: r.loc.Longitude}, nil
	}
}
