package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/forecast-service/internal/models"
)

// Cache stores normalized forecasts by key. Reads and writes are separate
// operations; callers decide when to write and when to evict.
// Get returns (rec, true, nil) only for a live entry.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherRecord, bool, error)
	Set(ctx context.Context, key string, value models.WeatherRecord, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report reachability for /health.
type Pinger interface {
	Ping() error
}

// InMemoryCache implements Cache using a map guarded by an RWMutex.
// Expired entries are removed on access.
type InMemoryCache struct {
	mu    sync.RWMutex
	data  map[string]cacheEntry
	clock clockwork.Clock
}

type cacheEntry struct {
	value     models.WeatherRecord
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache using the real clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(clockwork.NewRealClock())
}

func NewInMemoryCacheWithClock(clock clockwork.Clock) *InMemoryCache {
	return &InMemoryCache{
		data:  make(map[string]cacheEntry),
		clock: clock,
	}
}

// Get returns the live entry for key. An expired entry is deleted and reported as a miss.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherRecord, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.WeatherRecord{}, false, nil
	}

	if !c.clock.Now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if cur, ok := c.data[key]; ok && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return models.WeatherRecord{}, false, nil
	}

	return entry.value, true, nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherRecord, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, including expired ones not yet evicted.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
