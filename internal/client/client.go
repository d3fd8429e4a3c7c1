package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/forecast-service/internal/models"
	"github.com/kjstillabower/forecast-service/internal/observability"
)

// Payloads holds the raw bodies of the current-conditions and forecast responses.
type Payloads struct {
	Current  []byte
	Forecast []byte
}

type WeatherClient interface {
	Fetch(ctx context.Context, coord models.Coordinate) (Payloads, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
)

const (
	endpointWeather  = "weather"
	endpointForecast = "forecast"

	maxBodyBytes = 1 << 20
)

type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOpenWeatherClient creates a client for the OpenWeatherMap 2.5 API rooted at
// baseURL (e.g. http://api.openweathermap.org/data/2.5).
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker wraps Fetch in cb. Pass nil to disable.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// NewCircuitBreaker returns a breaker that opens after failureThreshold
// consecutive upstream failures and probes again after openTimeout.
func NewCircuitBreaker(name string, failureThreshold uint32, openTimeout time.Duration, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: onStateChange,
	})
}

type callResult struct {
	status int
	body   []byte
	err    error
}

func (r callResult) ok() bool {
	return r.err == nil && r.status >= 200 && r.status < 300
}

// pairOutcome carries non-breaker failures (401, 404) through the breaker untouched.
type pairOutcome struct {
	payloads Payloads
	err      error
}

// Fetch issues the current-conditions and forecast requests concurrently.
// Both must succeed; on failure the error wraps ErrInvalidAPIKey (either 401),
// ErrLocationNotFound (either 404) or ErrUpstreamFailure, in that order.
func (c *OpenWeatherClient) Fetch(ctx context.Context, coord models.Coordinate) (Payloads, error) {
	if c.breaker == nil {
		return c.fetchPair(ctx, coord)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		p, err := c.fetchPair(ctx, coord)
		if err != nil && errors.Is(err, ErrUpstreamFailure) {
			return nil, err
		}
		return pairOutcome{payloads: p, err: err}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Payloads{}, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
		}
		return Payloads{}, err
	}
	out := res.(pairOutcome)
	return out.payloads, out.err
}

func (c *OpenWeatherClient) fetchPair(ctx context.Context, coord models.Coordinate) (Payloads, error) {
	var current, forecast callResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		current = c.call(ctx, endpointWeather, coord)
	}()
	go func() {
		defer wg.Done()
		forecast = c.call(ctx, endpointForecast, coord)
	}()
	wg.Wait()

	if err := classify(current, forecast); err != nil {
		return Payloads{}, err
	}
	return Payloads{Current: current.body, Forecast: forecast.body}, nil
}

// classify applies the 401 > 404 > other precedence across both responses.
func classify(current, forecast callResult) error {
	if current.ok() && forecast.ok() {
		return nil
	}
	detail := fmt.Sprintf("weather=%s forecast=%s", describe(current), describe(forecast))
	switch {
	case current.status == http.StatusUnauthorized || forecast.status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, detail)
	case current.status == http.StatusNotFound || forecast.status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, detail)
	default:
		return fmt.Errorf("%w: %s", ErrUpstreamFailure, detail)
	}
}

func describe(r callResult) string {
	if r.err != nil {
		return r.err.Error()
	}
	return "HTTP " + strconv.Itoa(r.status)
}

func (c *OpenWeatherClient) call(ctx context.Context, endpoint string, coord models.Coordinate) callResult {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, coord)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		return callResult{err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return callResult{err: fmt.Errorf("request timeout: %w", err)}
		}
		return callResult{err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return callResult{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return callResult{err: fmt.Errorf("read response body: %w", err)}
	}
	return callResult{status: resp.StatusCode, body: body}
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, coord models.Coordinate) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// validationPoint is London; any valid coordinate works for probing the key.
var validationPoint = models.Coordinate{Lat: 51.5074, Lon: -0.1278}

// ValidateAPIKey probes the current-conditions endpoint. Used by /health.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r := c.call(ctx, endpointWeather, validationPoint)
	if r.err != nil {
		return fmt.Errorf("validation request failed: %w", r.err)
	}
	if r.status == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if r.status != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", r.status)
	}
	return nil
}
