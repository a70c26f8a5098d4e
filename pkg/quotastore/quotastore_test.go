package quotastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStore_ReserveThenRefund_LeavesDailyUsedUnchanged(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	state, err := store.Reserve(ctx, "user-1", 5, 50, now)
	require.NoError(t, err)
	assert.Equal(t, 5, state.DailyUsed)

	state, err = store.Refund(ctx, "user-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, state.DailyUsed)
}

func TestMemoryStore_Reserve_ExactlyAtLimitBoundary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	_, err := store.Reserve(ctx, "user-1", 48, 50, now)
	require.NoError(t, err)

	// Single-agent (cost 1) still fits under the limit.
	state, err := store.Reserve(ctx, "user-1", 1, 50, now)
	require.NoError(t, err)
	assert.Equal(t, 49, state.DailyUsed)

	// Multi-agent (cost 5) does not.
	_, err = store.Reserve(ctx, "user-1", 5, 50, now)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestMemoryStore_Reserve_DailyResetAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	day1 := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)

	state, err := store.Reserve(ctx, "user-1", 50, 50, day1)
	require.NoError(t, err)
	assert.Equal(t, 50, state.DailyUsed)

	_, err = store.Reserve(ctx, "user-1", 1, 50, day1)
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	day2 := time.Date(2026, 8, 1, 0, 0, 1, 0, time.UTC)
	state, err = store.Reserve(ctx, "user-1", 1, 50, day2)
	require.NoError(t, err, "quota must reset at the UTC calendar-day boundary")
	assert.Equal(t, 1, state.DailyUsed)
}

func TestCachedStore_InvalidatesOnReserveAndRefund(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	cached := NewCachedStore(NewMemoryStore(), client, time.Minute)
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)

	_, err = cached.Reserve(ctx, "user-1", 5, 50, now)
	require.NoError(t, err)

	state, err := cached.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.DailyUsed, "Get populates the cache from the post-reserve state")

	_, err = cached.Reserve(ctx, "user-1", 5, 50, now)
	require.NoError(t, err)

	// Without invalidation, this Get would still serve the cached
	// DailyUsed=5 populated above.
	state, err = cached.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, state.DailyUsed, "Reserve must invalidate the cached read")

	_, err = cached.Refund(ctx, "user-1", 10)
	require.NoError(t, err)
	state, err = cached.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.DailyUsed, "Refund must invalidate the cached read")
}
