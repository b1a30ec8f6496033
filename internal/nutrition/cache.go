package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mrcode/directdose/internal/models"
)

// Cache stores lookup results keyed by ingredient line
type Cache interface {
	Get(ctx context.Context, ingredient string) (*models.NutritionFacts, bool, error)
	Set(ctx context.Context, ingredient string, facts *models.NutritionFacts, ttl time.Duration) error
}

// cacheKey normalizes an ingredient so "1 Apple" and "1 apple " share an entry
func cacheKey(ingredient string) string {
	return strings.Join(strings.Fields(strings.ToLower(ingredient)), " ")
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	URL       string // redis://[:password@]host:port/db
	KeyPrefix string
	Enabled   bool
}

// RedisCache provides a Redis-backed lookup cache. A disabled cache reports
// misses and drops writes.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	enabled   bool
}

// NewRedisCache connects to Redis when cfg.Enabled is set
func NewRedisCache(cfg *RedisConfig) (*RedisCache, error) {
	if cfg == nil || !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "directdose"
	}

	return &RedisCache{
		client:    client,
		keyPrefix: prefix,
		enabled:   true,
	}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsEnabled returns whether caching is enabled
func (c *RedisCache) IsEnabled() bool {
	return c.enabled
}

func (c *RedisCache) key(ingredient string) string {
	return c.keyPrefix + ":nutrition:" + cacheKey(ingredient)
}

// Get retrieves cached facts for an ingredient
func (c *RedisCache) Get(ctx context.Context, ingredient string) (*models.NutritionFacts, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	data, err := c.client.Get(ctx, c.key(ingredient)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var facts models.NutritionFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, false, err
	}
	return &facts, true, nil
}

// Set stores facts with a TTL
func (c *RedisCache) Set(ctx context.Context, ingredient string, facts *models.NutritionFacts, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(facts)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key(ingredient), data, ttl).Err()
}

// MemoryCache limits
const (
	DefaultMemoryEntries = 10000
	memorySweepInterval  = time.Minute
)

type memoryEntry struct {
	facts   models.NutritionFacts
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// MemoryCache is an in-process cache used when Redis is not configured.
// Expired entries are dropped on read and swept on write; past maxEntries an
// arbitrary entry is evicted.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	lastSweep  time.Time
	now        func() time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: DefaultMemoryEntries,
		now:        time.Now,
	}
}

// Get retrieves unexpired facts for an ingredient
func (c *MemoryCache) Get(_ context.Context, ingredient string) (*models.NutritionFacts, bool, error) {
	key := cacheKey(ingredient)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.expired(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	facts := entry.facts
	return &facts, true, nil
}

// Set stores facts; a zero ttl never expires
func (c *MemoryCache) Set(_ context.Context, ingredient string, facts *models.NutritionFacts, ttl time.Duration) error {
	if facts == nil {
		return nil
	}
	now := c.now()
	entry := memoryEntry{facts: *facts}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	key := cacheKey(ingredient)

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= memorySweepInterval {
		c.sweep(now)
	}
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.sweep(now)
		for k := range c.entries {
			if len(c.entries) < c.maxEntries {
				break
			}
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry
	return nil
}

// sweep drops expired entries. Callers hold mu.
func (c *MemoryCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

// Len returns the number of stored entries
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
