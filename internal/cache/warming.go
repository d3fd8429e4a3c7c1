package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/forecast-service/internal/observability"
)

// Refresher is implemented by the service layer to recompute and store a forecast.
// Used by CacheWarmer to avoid a circular dependency on the service package.
type Refresher interface {
	Refresh(ctx context.Context, address string) error
}

// CacheWarmer warms the cache by recomputing forecasts for a list of addresses.
type CacheWarmer struct {
	refresher  Refresher
	logger     *zap.Logger
	perAddress time.Duration

	mu        sync.Mutex
	scheduler *gocron.Scheduler
}

// NewCacheWarmer creates a CacheWarmer. Each address gets perAddress to finish
// (30s if zero).
func NewCacheWarmer(refresher Refresher, logger *zap.Logger, perAddress time.Duration) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if perAddress <= 0 {
		perAddress = 30 * time.Second
	}
	return &CacheWarmer{refresher: refresher, logger: logger, perAddress: perAddress}
}

// Warm refreshes each address concurrently. Returns the joined failures, if any.
func (w *CacheWarmer) Warm(ctx context.Context, addresses []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("addresses", len(addresses)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(addresses))
	for _, addr := range addresses {
		addr := addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, w.perAddress)
			defer cancel()
			if err := w.refresher.Refresh(actx, addr); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", addr, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("addresses", len(addresses)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration),
	)
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}

// Start warms once in the background and, when interval > 0, keeps refreshing
// on a gocron schedule until Stop. Runs never overlap.
func (w *CacheWarmer) Start(ctx context.Context, addresses []string, interval time.Duration) error {
	if len(addresses) == 0 {
		w.logger.Info("cache warming disabled: no addresses configured")
		return nil
	}

	run := func() {
		if err := w.Warm(ctx, addresses); err != nil {
			w.logger.Warn("cache warm failed", zap.Error(err))
		}
	}

	if interval <= 0 {
		go run()
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(interval).SingletonMode().Do(run); err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}
	s.StartAsync()

	w.mu.Lock()
	w.scheduler = s
	w.mu.Unlock()
	return nil
}

// Stop halts the periodic schedule. Safe to call when Start did not schedule.
func (w *CacheWarmer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.scheduler != nil {
		w.scheduler.Stop()
		w.scheduler = nil
	}
}
