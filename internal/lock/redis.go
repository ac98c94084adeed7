package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "wallet:lock:"

// Deletes the lease only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisProvider holds leases in redis so several service instances exclude each other.
// A lease expires after LeaseTTL even if its holder dies.
type RedisProvider struct {
	Client   *redis.Client
	LeaseTTL time.Duration
	Retry    time.Duration
	Log      zerolog.Logger
}

func NewRedisProvider(client *redis.Client, leaseTTL time.Duration, log zerolog.Logger) *RedisProvider {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Second
	}
	return &RedisProvider{Client: client, LeaseTTL: leaseTTL, Retry: 25 * time.Millisecond, Log: log}
}

func (p *RedisProvider) Acquire(ctx context.Context, key string, timeout time.Duration) (Handle, error) {
	token, err := leaseToken()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(effectiveTimeout(timeout))
	redisKey := redisKeyPrefix + key

	for {
		ok, err := p.Client.SetNX(ctx, redisKey, token, p.LeaseTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &redisHandle{provider: p, key: redisKey, token: token}, nil
		}

		wait := p.Retry
		if remaining := time.Until(deadline); remaining <= 0 {
			return nil, ErrTimeout
		} else if remaining < wait {
			wait = remaining
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type redisHandle struct {
	provider *RedisProvider
	key      string
	token    string
	once     sync.Once
}

func (h *redisHandle) Release() {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, h.provider.Client, []string{h.key}, h.token).Err(); err != nil {
			h.provider.Log.Error().Err(err).Str("key", h.key).Msg("failed to release lease")
		}
	})
}

func leaseToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
