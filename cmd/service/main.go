package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/forecast-service/internal/cache"
	"github.com/kjstillabower/forecast-service/internal/client"
	"github.com/kjstillabower/forecast-service/internal/config"
	"github.com/kjstillabower/forecast-service/internal/forecast"
	"github.com/kjstillabower/forecast-service/internal/geocode"
	httphandler "github.com/kjstillabower/forecast-service/internal/http"
	"github.com/kjstillabower/forecast-service/internal/observability"
	"github.com/kjstillabower/forecast-service/internal/service"
	"github.com/kjstillabower/forecast-service/internal/traffic"
)

const breakerComponent = "weather_api"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	if cfg.CircuitBreakerEnabled {
		cb := client.NewCircuitBreaker(breakerComponent, uint32(cfg.CircuitBreakerFailureThreshold), cfg.CircuitBreakerTimeout, breakerStateChange(logger))
		weatherClient.SetCircuitBreaker(cb)
		observability.CircuitBreakerState.WithLabelValues(breakerComponent).Set(0)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	resolver := newResolver(cfg)
	logger.Info("geocoder backend", zap.String("backend", cfg.GeocoderBackend))

	cacheSvc, memcacheCloser, err := newCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend), zap.Duration("ttl", cfg.CacheTTL))

	normalizer := forecast.NewNormalizer(clockwork.NewRealClock(), cfg.Location)
	forecastService := service.NewForecastService(resolver, weatherClient, normalizer, cacheSvc, cfg.CacheTTL, logger)

	if len(cfg.TrackedAddresses) > 0 {
		observability.SetTrackedAddresses(cfg.TrackedAddresses)
	}

	tracker := traffic.NewTracker(clockwork.NewRealClock())
	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:      cfg.DegradedWindow,
		DegradedErrorPct:    float64(cfg.DegradedErrorPct),
		DegradedMinRequests: cfg.DegradedMinRequests,
		OverloadWindow:      cfg.OverloadWindow,
		OverloadThreshold:   overloadThreshold(cfg),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(forecastService, weatherClient, tracker, healthConfig, logger, cfg.AddressMaxLength)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, logger, httphandler.RouterOptions{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		Denials:        tracker,
	})

	warmer := cache.NewCacheWarmer(forecastService, logger, cfg.RequestTimeout)
	if err := warmer.Start(context.Background(), cfg.WarmAddresses, cfg.WarmInterval); err != nil {
		logger.Error("cache warming schedule", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	warmer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// overloadThreshold is the denial count that marks the service overloaded: the
// configured share of what the limiter admits over the window. Zero disables it.
func overloadThreshold(cfg *config.Config) int {
	if cfg.RateLimitRPS <= 0 {
		return 0
	}
	return int(float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100)
}

func newResolver(cfg *config.Config) geocode.Resolver {
	if cfg.GeocoderBackend == "google" {
		return geocode.NewGoogleGeocoder(cfg.GoogleGeocodingKey)
	}
	return geocode.NewOpenWeatherGeocoder(cfg.WeatherAPIKey, cfg.GeocoderURL, cfg.WeatherAPITimeout)
}

// newCache returns the configured backend. The memcached handle is also returned
// so main can ping and close it; it is nil for in_memory.
func newCache(cfg *config.Config) (cache.Cache, *cache.MemcachedCache, error) {
	if cfg.CacheBackend != "memcached" {
		return cache.NewInMemoryCache(), nil, nil
	}
	mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
	if err != nil {
		return nil, nil, fmt.Errorf("memcached cache: %w", err)
	}
	return mc, mc, nil
}

func breakerStateChange(logger *zap.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		observability.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		observability.CircuitBreakerState.WithLabelValues(name).Set(observability.CircuitBreakerStateValue(to.String()))
		logger.Warn("circuit breaker state change",
			zap.String("component", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
}
