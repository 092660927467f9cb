// Package cache is the explicit read-through cache for registration listings.
// Entries are keyed by caller scope (role plus user id) with a short TTL;
// every mutating workflow call invalidates the scopes it touches before
// returning. There is deliberately no implicit module-level state.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"habitat/internal/platform/metrics"
	id "habitat/pkg/domain"
)

const keyPrefix = "reg:list:"

// ScopeKey derives the cache key for one caller's listing.
func ScopeKey(role string, userID id.UserID) string {
	return keyPrefix + role + ":" + userID.String()
}

// Cache wraps redis with TTL semantics. A nil *Cache (or one built from a nil
// client) is a valid pass-through: Get always misses, Set and Invalidate are
// no-ops. That keeps the cache strictly optional wiring.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
}

func New(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, ttl: ttl, metrics: m}
}

// Get returns the cached payload for a scope, if present and fresh.
func (c *Cache) Get(ctx context.Context, scopeKey string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, scopeKey).Bytes()
	if err != nil {
		// redis.Nil and transport errors both degrade to a miss; the store
		// remains the source of truth.
		c.metrics.IncCacheOp("miss")
		return nil, false
	}
	c.metrics.IncCacheOp("hit")
	return payload, true
}

// Set stores a payload under a scope with the configured TTL.
func (c *Cache) Set(ctx context.Context, scopeKey string, payload []byte) {
	if c == nil {
		return
	}
	// Best-effort: a failed write only costs the next caller a store read.
	_ = c.client.Set(ctx, scopeKey, payload, c.ttl).Err()
}

// Invalidate drops the given scopes. Mutations call this before returning so
// no caller can read a listing that predates their own write.
func (c *Cache) Invalidate(ctx context.Context, scopeKeys ...string) {
	if c == nil || len(scopeKeys) == 0 {
		return
	}
	if err := c.client.Del(ctx, scopeKeys...).Err(); err == nil {
		c.metrics.IncCacheOp("invalidation")
	}
}
