package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/forecast-service/internal/cache"
	"github.com/kjstillabower/forecast-service/internal/config"
	"github.com/kjstillabower/forecast-service/internal/geocode"
	"github.com/kjstillabower/forecast-service/internal/observability"
)

func TestNewResolver(t *testing.T) {
	cfg := &config.Config{GeocoderBackend: "openweather", WeatherAPIKey: "k", WeatherAPITimeout: time.Second}
	if _, ok := newResolver(cfg).(*geocode.OpenWeatherGeocoder); !ok {
		t.Error("openweather backend did not build OpenWeatherGeocoder")
	}
	cfg.GeocoderBackend = "google"
	cfg.GoogleGeocodingKey = "g"
	if _, ok := newResolver(cfg).(*geocode.GoogleGeocoder); !ok {
		t.Error("google backend did not build GoogleGeocoder")
	}
}

func TestOverloadThreshold(t *testing.T) {
	tests := []struct {
		rps, pct int
		window   time.Duration
		want     int
	}{
		{rps: 20, pct: 80, window: time.Minute, want: 960},
		{rps: 5, pct: 50, window: 10 * time.Second, want: 25},
		{rps: 0, pct: 80, window: time.Minute, want: 0},
	}
	for _, tt := range tests {
		cfg := &config.Config{RateLimitRPS: tt.rps, OverloadThresholdPct: tt.pct, OverloadWindow: tt.window}
		if got := overloadThreshold(cfg); got != tt.want {
			t.Errorf("overloadThreshold(rps=%d, pct=%d, window=%v) = %d, want %d", tt.rps, tt.pct, tt.window, got, tt.want)
		}
	}
}

func TestNewCache_InMemory(t *testing.T) {
	c, mc, err := newCache(&config.Config{CacheBackend: "in_memory"})
	if err != nil {
		t.Fatalf("newCache() error = %v", err)
	}
	if _, ok := c.(*cache.InMemoryCache); !ok {
		t.Errorf("newCache() = %T, want *cache.InMemoryCache", c)
	}
	if mc != nil {
		t.Error("memcached handle should be nil for in_memory")
	}
}

// TestBreakerStateChange verifies transitions update the exported metrics and the log.
func TestBreakerStateChange(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	breakerStateChange(zap.New(core))("test_breaker", gobreaker.StateClosed, gobreaker.StateOpen)

	w := httptest.NewRecorder()
	observability.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	for _, want := range []string{
		`circuitBreakerState{component="test_breaker"} 2`,
		`circuitBreakerTransitionsTotal{component="test_breaker",from="closed",to="open"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if logs.FilterMessage("circuit breaker state change").Len() != 1 {
		t.Error("state change not logged")
	}
}
