// Package quota implements the Quota Gate: the credit check that precedes
// every agent invocation. It wraps a quotastore.Store with the two
// operations spec.md §4.6 names — check_and_reserve and commit/refund — plus
// the auto-downgrade path a caller takes when a multi-agent reservation is
// rejected.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantmemo/memocore/pkg/config"
	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/quotastore"
)

// ErrInsufficientCredits is returned when a reservation would exceed the
// user's remaining daily quota. It wraps quotastore.ErrInsufficientCredits
// so callers can errors.Is against either.
var ErrInsufficientCredits = quotastore.ErrInsufficientCredits

// Mode identifies the cost tier a reservation was made at.
type Mode string

const (
	ModeSingleAgent  Mode = "single_agent"
	ModeMultiAgent   Mode = "multi_agent"
	ModeDeepResearch Mode = "deep_research"
)

// Reservation is the receipt check_and_reserve returns. Commit is a no-op
// that simply confirms the reservation stands; Refund credits back some or
// all of Cost for a reservation that was downgraded or abandoned.
type Reservation struct {
	UserID string
	Mode   Mode
	Cost   int
	State  models.QuotaState

	// DowngradeReason is set by Downgrade to "quota_insufficient" on the
	// returned Reservation, so callers building a report's metadata can
	// copy it through without re-deriving that the reservation took the
	// downgrade path.
	DowngradeReason string
}

// Gate is the Quota Gate. It holds no state of its own beyond the store and
// the configured cost table and daily limit — every check is a fresh read
// of the QuotaState row via the store.
type Gate struct {
	store      quotastore.Store
	costs      config.QuotaCosts
	dailyLimit int
	now        func() time.Time
}

// New builds a Gate. dailyLimit is the per-user daily credit allowance;
// spec.md treats it as a fixed configured value rather than a per-user
// field, so it is supplied once here.
func New(store quotastore.Store, costs config.QuotaCosts, dailyLimit int) *Gate {
	return &Gate{store: store, costs: costs, dailyLimit: dailyLimit, now: time.Now}
}

func (g *Gate) costFor(mode Mode) (int, error) {
	switch mode {
	case ModeSingleAgent:
		return g.costs.SingleAgent, nil
	case ModeMultiAgent:
		return g.costs.MultiAgent, nil
	case ModeDeepResearch:
		return g.costs.DeepResearch, nil
	default:
		return 0, fmt.Errorf("quota: unknown mode %q", mode)
	}
}

// CheckAndReserve debits the credits for mode from userID's daily quota and
// returns a Reservation. If the user lacks sufficient credits, it returns
// ErrInsufficientCredits and debits nothing — the caller decides whether to
// retry at a cheaper mode via Downgrade.
func (g *Gate) CheckAndReserve(ctx context.Context, userID string, mode Mode) (Reservation, error) {
	cost, err := g.costFor(mode)
	if err != nil {
		return Reservation{}, err
	}

	state, err := g.store.Reserve(ctx, userID, cost, g.dailyLimit, g.now())
	if err != nil {
		if errors.Is(err, quotastore.ErrInsufficientCredits) {
			return Reservation{}, ErrInsufficientCredits
		}
		return Reservation{}, fmt.Errorf("quota: reserve: %w", err)
	}

	return Reservation{UserID: userID, Mode: mode, Cost: cost, State: state}, nil
}

// Commit confirms a reservation. The credits were already debited at
// reservation time (spec.md §5: "quota deduction precedes any provider
// call"), so committing is a deliberate no-op kept as a named operation —
// it documents the point in a caller's flow where the reservation becomes
// final and is no longer eligible for Downgrade.
func (g *Gate) Commit(reservation Reservation) {
	// Intentionally empty: deduction already happened in CheckAndReserve.
}

// Refund credits amount back to reservation's user, for example when an
// agent that was reserved for never actually ran. amount must not exceed
// reservation.Cost.
func (g *Gate) Refund(ctx context.Context, reservation Reservation, amount int) (models.QuotaState, error) {
	state, err := g.store.Refund(ctx, reservation.UserID, amount)
	if err != nil {
		return models.QuotaState{}, fmt.Errorf("quota: refund: %w", err)
	}
	return state, nil
}

// Downgrade retries a rejected higher-cost reservation at a cheaper mode,
// logging the reason as spec.md §4.6 requires. It never needs to refund:
// the rejected reservation debited nothing, so the only credits moving are
// the downgraded mode's own cost, reserved fresh. Grounded in the "atomic in
// the same transaction" requirement is satisfied because the rejected
// reservation is a no-op — there is no excess to refund across two round
// trips.
func (g *Gate) Downgrade(ctx context.Context, userID string, from, to Mode) (Reservation, error) {
	slog.Warn("quota: auto-downgrade",
		"user_id", userID,
		"from_mode", from,
		"to_mode", to,
		"downgrade_reason", "quota_insufficient",
	)
	reservation, err := g.CheckAndReserve(ctx, userID, to)
	if err != nil {
		return Reservation{}, err
	}
	reservation.DowngradeReason = "quota_insufficient"
	return reservation, nil
}

// Get returns the user's current quota state without reserving anything.
func (g *Gate) Get(ctx context.Context, userID string) (models.QuotaState, error) {
	state, err := g.store.Get(ctx, userID)
	if err != nil {
		return models.QuotaState{}, fmt.Errorf("quota: get: %w", err)
	}
	return state, nil
}
