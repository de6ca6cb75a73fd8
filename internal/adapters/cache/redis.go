package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "facequiz:"

// raiseScript sets KEYS[1] to ARGV[1] unless it already holds a number at
// least as large. ARGV[2] is the ttl in milliseconds, 0 for none.
var raiseScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]))
if cur and cur >= tonumber(ARGV[1]) then
  return 0
end
if tonumber(ARGV[2]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisCache wraps a Redis client.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithKeyPrefix namespaces every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisCache) {
		r.prefix = prefix
	}
}

// NewRedisCache connects to a redis:// URL and verifies the connection.
func NewRedisCache(ctx context.Context, url string, opts ...RedisOption) (*RedisCache, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ropts.MaxRetries = 3
	ropts.DialTimeout = 5 * time.Second
	ropts.ReadTimeout = 3 * time.Second
	ropts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, opts...), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, opts ...RedisOption) *RedisCache {
	r := &RedisCache{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisCache) key(k string) string { return r.prefix + k }

// GetInt retrieves a counter.
func (r *RedisCache) GetInt(ctx context.Context, key string) (int64, error) {
	s, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// a corrupt value behaves like a miss and is overwritten on the next load
		return 0, ErrMiss
	}
	return v, nil
}

// SetInt stores a counter with ttl. ttl <= 0 stores it without expiry.
func (r *RedisCache) SetInt(ctx context.Context, key string, v int64, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.key(key), v, ttl).Err()
}

// Raise stores a counter with ttl unless a value >= v is already cached.
func (r *RedisCache) Raise(ctx context.Context, key string, v int64, ttl time.Duration) error {
	var ms int64
	if ttl > 0 {
		ms = max(ttl.Milliseconds(), 1)
	}
	if err := raiseScript.Run(ctx, r.client, []string{r.key(key)}, v, ms).Err(); err != nil {
		return fmt.Errorf("redis raise %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	return r.client.Del(ctx, full...).Err()
}

// Ping checks if Redis is reachable.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var (
	_ Cache = (*RedisCache)(nil)
	_ Cache = Noop{}
)
