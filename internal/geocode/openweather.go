package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/forecast-service/internal/models"
	"github.com/kjstillabower/forecast-service/internal/observability"
)

const openWeatherBackend = "openweather"

// OpenWeatherGeocoder implements Resolver using the OpenWeatherMap Direct Geocoding API.
type OpenWeatherGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenWeatherGeocoder creates a geocoder. baseURL is the direct endpoint,
// e.g. http://api.openweathermap.org/geo/1.0/direct.
func NewOpenWeatherGeocoder(apiKey, baseURL string, timeout time.Duration) *OpenWeatherGeocoder {
	return &OpenWeatherGeocoder{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type directResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// Resolve returns the first match for address, or ErrNotFound.
func (g *OpenWeatherGeocoder) Resolve(ctx context.Context, address string) (models.Coordinate, error) {
	coord, err := g.resolve(ctx, address)
	switch {
	case err == nil:
		observability.GeocodeCallsTotal.WithLabelValues(openWeatherBackend, "found").Inc()
	case errors.Is(err, ErrNotFound):
		observability.GeocodeCallsTotal.WithLabelValues(openWeatherBackend, "not_found").Inc()
	default:
		observability.GeocodeCallsTotal.WithLabelValues(openWeatherBackend, "error").Inc()
	}
	return coord, err
}

func (g *OpenWeatherGeocoder) resolve(ctx context.Context, address string) (models.Coordinate, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("invalid geocoder URL: %w", err)
	}
	params := url.Values{}
	params.Set("q", address)
	params.Set("limit", "1")
	params.Set("appid", g.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return models.Coordinate{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Coordinate{}, fmt.Errorf("geocode API error: status %d: %s", resp.StatusCode, body)
	}

	var results []directResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return models.Coordinate{}, fmt.Errorf("decode response: %w", err)
	}
	if len(results) == 0 {
		return models.Coordinate{}, ErrNotFound
	}
	return models.Coordinate{Lat: results[0].Lat, Lon: results[0].Lon}, nil
}
