package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/forecast-service/internal/models"
)

const (
	keyPrefix = "weather:"

	// memcached rejects keys over 250 bytes; long addresses are hashed.
	maxPlainKeyLen = 200

	maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
)

// MemcachedCache implements Cache using memcached. Values are JSON.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	if len(k) > maxPlainKeyLen || strings.ContainsAny(k, " \t\r\n\x7f") {
		sum := sha256.Sum256([]byte(k))
		return keyPrefix + "h:" + hex.EncodeToString(sum[:])
	}
	return keyPrefix + k
}

// Get returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.WeatherRecord, bool, error) {
	if ctx.Err() != nil {
		return models.WeatherRecord{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.WeatherRecord{}, false, nil
		}
		return models.WeatherRecord{}, false, err
	}
	var rec models.WeatherRecord
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return models.WeatherRecord{}, false, err
	}
	return rec, true, nil
}

func (c *MemcachedCache) Set(ctx context.Context, key string, value models.WeatherRecord, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expiration(ttl),
	})
}

// expiration converts ttl to memcached's relative seconds, falling back to 30m.
func expiration(ttl time.Duration) int32 {
	expSec := int32(ttl.Seconds())
	if expSec <= 0 || expSec > maxRelativeExp {
		return 1800
	}
	return expSec
}

func (c *MemcachedCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.Get(ctx, key)
	return ok, err
}

// Delete treats a missing key as success.
func (c *MemcachedCache) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := c.client.Delete(c.key(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
