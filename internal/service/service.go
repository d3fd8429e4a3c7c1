package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-service/internal/cache"
	"github.com/kjstillabower/forecast-service/internal/client"
	"github.com/kjstillabower/forecast-service/internal/geocode"
	"github.com/kjstillabower/forecast-service/internal/models"
	"github.com/kjstillabower/forecast-service/internal/observability"
)

// DefaultTTL is how long a successful forecast stays cached.
const DefaultTTL = 30 * time.Minute

const outcomeSuccess = "success"
const outcomeCacheHit = "cache_hit"

// Fetcher is the subset of client.WeatherClient the pipeline needs.
type Fetcher interface {
	Fetch(ctx context.Context, coord models.Coordinate) (client.Payloads, error)
}

type Normalizer interface {
	Normalize(p client.Payloads, address string) (models.WeatherRecord, error)
}

// ForecastService answers forecast lookups from the cache, computing and
// storing them on a miss. A cache entry never holds a failure.
type ForecastService struct {
	resolver        geocode.Resolver
	fetcher         Fetcher
	normalizer      Normalizer
	cache           cache.Cache
	ttl             time.Duration
	logger          *zap.Logger
	stampedeTracker *stampedeTracker
}

// NewForecastService wires the pipeline. A non-positive ttl uses DefaultTTL.
func NewForecastService(resolver geocode.Resolver, fetcher Fetcher, normalizer Normalizer, c cache.Cache, ttl time.Duration, logger *zap.Logger) *ForecastService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ForecastService{
		resolver:        resolver,
		fetcher:         fetcher,
		normalizer:      normalizer,
		cache:           c,
		ttl:             ttl,
		logger:          logger,
		stampedeTracker: newStampedeTracker(),
	}
}

// CacheKey returns the cache key for address: lower-cased, whitespace runs
// collapsed to "_", prefixed "weather_".
func CacheKey(address string) string {
	return "weather_" + strings.Join(strings.Fields(strings.ToLower(address)), "_")
}

// GetForecast returns the forecast for address. fromCache reports whether the
// record was served from a live cache entry. On failure err is a *models.ErrorResult
// and any entry for the key is removed.
func (s *ForecastService) GetForecast(ctx context.Context, address string) (models.WeatherRecord, bool, error) {
	key := CacheKey(address)
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, s.logger)
	observability.RecordForecastQuery(address)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.Inc()
		observability.ForecastOutcomesTotal.WithLabelValues(outcomeCacheHit).Inc()
		logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, true, nil
	}
	observability.CacheMissesTotal.Inc()

	if concurrent := s.stampedeTracker.RecordMiss(key); concurrent > 1 {
		observability.CacheStampedeDetectedTotal.Inc()
	}
	defer s.stampedeTracker.RecordHit(key)

	logger.Debug("cache miss, computing forecast", zap.String("key", key))
	rec, res := s.compute(ctx, address)
	s.store(ctx, logger, key, rec, res)
	if res != nil {
		return models.WeatherRecord{}, false, res
	}
	logger.Debug("forecast served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	return rec, false, nil
}

// Refresh recomputes the forecast for address without reading the cache, then
// stores or evicts it under the same rule as GetForecast.
func (s *ForecastService) Refresh(ctx context.Context, address string) error {
	key := CacheKey(address)
	logger := observability.LoggerFromContext(ctx, s.logger)

	rec, res := s.compute(ctx, address)
	s.store(ctx, logger, key, rec, res)
	if res != nil {
		return res
	}
	return nil
}

// compute runs resolve, fetch and normalize. Exactly one return value is meaningful.
func (s *ForecastService) compute(ctx context.Context, address string) (models.WeatherRecord, *models.ErrorResult) {
	logger := observability.LoggerFromContext(ctx, s.logger)

	coord, err := s.resolver.Resolve(ctx, address)
	if err != nil {
		// Resolver transport errors are reported as not-found too.
		return s.fail(models.ErrorKindNotFound, address, err)
	}

	payloads, err := s.fetcher.Fetch(ctx, coord)
	if err != nil {
		return s.fail(client.ErrorKind(err), address, err)
	}

	rec, err := s.normalizer.Normalize(payloads, address)
	if err != nil {
		logger.Error("error processing weather data", zap.String("address", address), zap.Error(err))
		return s.fail(models.ErrorKindProcessingFailure, address, err)
	}

	observability.ForecastOutcomesTotal.WithLabelValues(outcomeSuccess).Inc()
	return rec, nil
}

func (s *ForecastService) fail(kind models.ErrorKind, address string, cause error) (models.WeatherRecord, *models.ErrorResult) {
	res := models.NewErrorResult(kind, address, cause)
	observability.ForecastOutcomesTotal.WithLabelValues(string(res.Kind)).Inc()
	return models.WeatherRecord{}, res
}

// store writes a success and evicts the key after a failure. Cache errors are
// logged and otherwise ignored.
func (s *ForecastService) store(ctx context.Context, logger *zap.Logger, key string, rec models.WeatherRecord, res *models.ErrorResult) {
	if res == nil {
		if err := s.cache.Set(ctx, key, rec, s.ttl); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		}
		return
	}

	exists, err := s.cache.Exists(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("exists").Inc()
		logger.Warn("cache exists failed", zap.String("key", key), zap.Error(err))
		// Unknown state; delete anyway so no entry survives the failure.
		exists = true
	}
	if !exists {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("delete").Inc()
		logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		return
	}
	observability.CacheEvictionsTotal.Inc()
}

// IsErrorResult reports whether err carries a caller-facing ErrorResult and returns it.
func IsErrorResult(err error) (*models.ErrorResult, bool) {
	var res *models.ErrorResult
	if errors.As(err, &res) {
		return res, true
	}
	return nil, false
}
