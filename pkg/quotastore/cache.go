package quotastore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantmemo/memocore/pkg/models"
)

// CachedStore wraps a Store with an optional Redis fast-path read cache for
// Get, invalidated on every Reserve/Refund — the two operations that can
// change daily_used. Reserve and Refund themselves always go straight to
// the underlying Store: quota debits must never be served from a cache,
// only the read-mostly "how much is left" query benefits from one.
// Grounded on the domain stack's miniredis/go-redis pairing: tests run this
// against a miniredis instance, production against a real Redis addr.
type CachedStore struct {
	inner Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps inner with a Redis cache. A nil client disables
// caching entirely — Get falls straight through to inner every time, which
// is exactly quotastore's behavior when config.RedisConfig.Addr is empty.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{inner: inner, redis: client, ttl: ttl}
}

func (c *CachedStore) Get(ctx context.Context, userID string) (models.QuotaState, error) {
	if c.redis == nil {
		return c.inner.Get(ctx, userID)
	}

	key := cacheKey(userID)
	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cached models.QuotaState
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	}

	state, err := c.inner.Get(ctx, userID)
	if err != nil {
		return state, err
	}
	c.set(ctx, userID, state)
	return state, nil
}

func (c *CachedStore) Reserve(ctx context.Context, userID string, cost, dailyLimit int, now time.Time) (models.QuotaState, error) {
	state, err := c.inner.Reserve(ctx, userID, cost, dailyLimit, now)
	c.invalidate(ctx, userID)
	return state, err
}

func (c *CachedStore) Refund(ctx context.Context, userID string, amount int) (models.QuotaState, error) {
	state, err := c.inner.Refund(ctx, userID, amount)
	c.invalidate(ctx, userID)
	return state, err
}

func (c *CachedStore) set(ctx context.Context, userID string, state models.QuotaState) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(userID), raw, c.ttl).Err(); err != nil {
		slog.Warn("quotastore: failed to populate redis cache", "user_id", userID, "error", err)
	}
}

func (c *CachedStore) invalidate(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, cacheKey(userID)).Err(); err != nil {
		slog.Warn("quotastore: failed to invalidate redis cache", "user_id", userID, "error", err)
	}
}

func cacheKey(userID string) string {
	return "memocore:quota:" + userID
}
