//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-service/internal/cache"
	"github.com/kjstillabower/forecast-service/internal/client"
	"github.com/kjstillabower/forecast-service/internal/forecast"
	"github.com/kjstillabower/forecast-service/internal/geocode"
	"github.com/kjstillabower/forecast-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	GeocodeURL    string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if OPENWEATHERMAP_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("OPENWEATHERMAP_API_KEY")
	if apiKey == "" {
		t.Skip("OPENWEATHERMAP_API_KEY not set, skipping integration test")
	}
	cfg := IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        getenv("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5"),
		GeocodeURL:    getenv("GEOCODER_URL", "https://api.openweathermap.org/geo/1.0/direct"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: getenv("MEMCACHED_ADDRS", "localhost:11211"),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetupIntegrationService wires the real geocoder, client, normalizer and cache.
// Returns the service, the client (for key validation), the cache and a cleanup func.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig, logger *zap.Logger) (*service.ForecastService, *client.OpenWeatherClient, cache.Cache, func()) {
	t.Helper()
	weatherClient, err := client.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}

	var cacheSvc cache.Cache = cache.NewInMemoryCache()
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("using memcached at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("memcached not available, using in-memory cache")
		}
	}

	resolver := geocode.NewOpenWeatherGeocoder(cfg.APIKey, cfg.GeocodeURL, 5*time.Second)
	svc := service.NewForecastService(resolver, weatherClient, forecast.NewNormalizer(nil, time.UTC), cacheSvc, service.DefaultTTL, logger)
	return svc, weatherClient, cacheSvc, cleanup
}
