package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmemo/memocore/pkg/config"
	"github.com/quantmemo/memocore/pkg/quotastore"
)

func testCosts() config.QuotaCosts {
	return config.QuotaCosts{SingleAgent: 1, MultiAgent: 5, DeepResearch: 5}
}

func TestGate_CheckAndReserve_SingleAgentHappyPath(t *testing.T) {
	store := quotastore.NewMemoryStore()
	g := New(store, testCosts(), 50)
	g.now = func() time.Time { return time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC) }

	reservation, err := g.CheckAndReserve(context.Background(), "user-1", ModeSingleAgent)
	require.NoError(t, err)
	assert.Equal(t, 1, reservation.Cost)
	assert.Equal(t, 1, reservation.State.DailyUsed)
}

func TestGate_CheckAndReserve_MultiAgentExactlyAtLimitRejected(t *testing.T) {
	store := quotastore.NewMemoryStore()
	g := New(store, testCosts(), 50)
	g.now = func() time.Time { return time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	_, err := store.Reserve(ctx, "user-1", 48, 50, g.now())
	require.NoError(t, err)

	// Single-agent (cost 1) still fits.
	_, err = g.CheckAndReserve(ctx, "user-1", ModeSingleAgent)
	require.NoError(t, err)

	// Multi-agent (cost 5) does not.
	_, err = g.CheckAndReserve(ctx, "user-1", ModeMultiAgent)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestGate_Downgrade_AutoDowngradesToSingleAgentAfterMultiFails(t *testing.T) {
	store := quotastore.NewMemoryStore()
	g := New(store, testCosts(), 50)
	g.now = func() time.Time { return time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	_, err := store.Reserve(ctx, "user-1", 48, 50, g.now())
	require.NoError(t, err)

	_, err = g.CheckAndReserve(ctx, "user-1", ModeMultiAgent)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	reservation, err := g.Downgrade(ctx, "user-1", ModeMultiAgent, ModeSingleAgent)
	require.NoError(t, err)
	assert.Equal(t, ModeSingleAgent, reservation.Mode)
	assert.Equal(t, 1, reservation.Cost)
	assert.Equal(t, 49, reservation.State.DailyUsed)
}

func TestGate_Refund_CreditsBackAmount(t *testing.T) {
	store := quotastore.NewMemoryStore()
	g := New(store, testCosts(), 50)
	g.now = func() time.Time { return time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	reservation, err := g.CheckAndReserve(ctx, "user-1", ModeMultiAgent)
	require.NoError(t, err)

	state, err := g.Refund(ctx, reservation, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, state.DailyUsed)
}
