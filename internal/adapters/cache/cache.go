// Package cache provides a read-through counter cache backed by Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/okian/facequiz/pkg/metrics"
)

// Keys of the cached counters.
const (
	KeyVisitorCount = "visitors:count"
	KeyGameCount    = "games:count"
)

// Cache stores integer counters with a TTL.
type Cache interface {
	// GetInt returns ErrMiss when key is absent or expired.
	GetInt(ctx context.Context, key string) (int64, error)
	SetInt(ctx context.Context, key string, v int64, ttl time.Duration) error
	// Raise stores v unless the cached value is already >= v.
	Raise(ctx context.Context, key string, v int64, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Fetch reads key from c and falls back to load on a miss or cache failure.
// Loaded values are written back with Raise, so a slow load never replaces a
// newer count written through by a concurrent update. A writer that only
// deletes the key can still be overtaken by a load started before its write;
// that count then lags for at most ttl. Cache write errors are ignored.
func Fetch(ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (int64, error)) (int64, error) {
	v, err := c.GetInt(ctx, key)
	switch {
	case err == nil:
		metrics.RecordCacheRequest("hit")
		return v, nil
	case errors.Is(err, ErrMiss):
		metrics.RecordCacheRequest("miss")
	default:
		metrics.RecordCacheRequest("error")
		metrics.RecordErrorByComponent("cache", "get")
	}

	v, err = load(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.Raise(ctx, key, v, ttl); err != nil {
		metrics.RecordErrorByComponent("cache", "set")
	}
	return v, nil
}

// Noop is a Cache that never holds anything.
type Noop struct{}

func (Noop) GetInt(context.Context, string) (int64, error)              { return 0, ErrMiss }
func (Noop) SetInt(context.Context, string, int64, time.Duration) error { return nil }
func (Noop) Raise(context.Context, string, int64, time.Duration) error  { return nil }
func (Noop) Delete(context.Context, ...string) error                    { return nil }
func (Noop) Ping(context.Context) error                                 { return nil }
func (Noop) Close() error                                               { return nil }
