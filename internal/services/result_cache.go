package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ResultCache remembers external deposit results by idempotency key for a short time.
type ResultCache interface {
	Get(ctx context.Context, key string) (*TransactionResult, bool)
	Set(ctx context.Context, key string, res *TransactionResult, ttl time.Duration)
}

type cachedResult struct {
	res     TransactionResult
	expires time.Time
}

// MemoryResultCache is a process-local ResultCache.
type MemoryResultCache struct {
	mu      sync.Mutex
	entries map[string]cachedResult
	writes  int
	now     func() time.Time
}

func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{entries: make(map[string]cachedResult), now: time.Now}
}

func (c *MemoryResultCache) Get(_ context.Context, key string) (*TransactionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	res := e.res
	return &res, true
}

func (c *MemoryResultCache) Set(_ context.Context, key string, res *TransactionResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedResult{res: *res, expires: c.now().Add(ttl)}
	c.writes++
	if c.writes%256 == 0 {
		c.purgeLocked()
	}
}

func (c *MemoryResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryResultCache) purgeLocked() {
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
}

const resultCachePrefix = "wallet:idempotency:"

// RedisResultCache shares results between service instances. Redis errors are
// logged and treated as a miss, the database remains the source of truth.
type RedisResultCache struct {
	Client *redis.Client
	Log    zerolog.Logger
}

func NewRedisResultCache(client *redis.Client, log zerolog.Logger) *RedisResultCache {
	return &RedisResultCache{Client: client, Log: log}
}

func (c *RedisResultCache) Get(ctx context.Context, key string) (*TransactionResult, bool) {
	data, err := c.Client.Get(ctx, resultCachePrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.Log.Warn().Err(err).Msg("idempotency cache read failed")
		return nil, false
	}

	var res TransactionResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.Log.Warn().Err(err).Msg("idempotency cache entry unreadable")
		return nil, false
	}
	return &res, true
}

func (c *RedisResultCache) Set(ctx context.Context, key string, res *TransactionResult, ttl time.Duration) {
	data, err := json.Marshal(res)
	if err != nil {
		c.Log.Warn().Err(err).Msg("idempotency cache entry not encodable")
		return
	}
	if err := c.Client.Set(ctx, resultCachePrefix+key, data, ttl).Err(); err != nil {
		c.Log.Warn().Err(err).Msg("idempotency cache write failed")
	}
}
