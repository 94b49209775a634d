// Package rediscache invalidates the serving path's cached entry
// renderings after the pipeline writes or replaces a dictionary entry.
// The serving application caches entries under dict:entry:<term>:<variant>
// keys; invalidation drops every variant of a term. A no-op
// implementation covers deployments without Redis.
package rediscache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/solfege-app/glossary/internal/store"
)

// keyPattern matches all cached variants of one normalized term.
const keyPattern = "dict:entry:%s:*"

// scanBatchSize bounds keys fetched per SCAN iteration.
const scanBatchSize = 100

// Cache invalidates entry keys in Redis.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis using a redis:// URL.
func New(url string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return &Cache{
		client: redis.NewClient(opts),
		logger: logger.With(slog.String("component", "entry_cache")),
	}, nil
}

var _ store.EntryCache = (*Cache)(nil)

// Invalidate deletes all cached variants of the normalized term. SCAN is
// used instead of KEYS so invalidation never blocks the serving path's
// Redis instance.
func (c *Cache) Invalidate(ctx context.Context, normalizedTerm string) error {
	pattern := fmt.Sprintf(keyPattern, normalizedTerm)

	var deleted int64
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= scanBatchSize {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete cache keys: %w", err)
			}
			deleted += n
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache key scan failed: %w", err)
	}

	if len(keys) > 0 {
		n, err := c.client.Del(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
		deleted += n
	}

	if deleted > 0 {
		c.logger.DebugContext(ctx, "invalidated cached entry variants",
			slog.String("term", normalizedTerm),
			slog.Int64("keys_deleted", deleted))
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// NoOp is an EntryCache for deployments without Redis.
type NoOp struct{}

// Invalidate does nothing.
func (NoOp) Invalidate(context.Context, string) error { return nil }
