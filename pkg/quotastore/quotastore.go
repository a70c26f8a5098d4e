// Package quotastore durably persists models.QuotaState and performs the
// atomic reserve/refund operations spec.md §4.6/§5 requires: reservation
// and commit happen inside a single transactional unit against the
// quota_state row, with the daily 00:00 UTC reset folded into the same
// transaction so a reservation racing a reset never sees a half-applied
// reset.
package quotastore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantmemo/memocore/pkg/models"
)

// ErrInsufficientCredits indicates the requested cost would exceed the
// user's remaining daily quota.
var ErrInsufficientCredits = errors.New("quotastore: insufficient credits")

// Store is the durable QuotaState persistence contract.
type Store interface {
	// Reserve atomically applies the daily reset if due, then debits cost
	// credits if daily_used+cost <= daily_limit, returning the post-debit
	// state. If insufficient, it debits nothing and returns
	// ErrInsufficientCredits alongside the unchanged state.
	Reserve(ctx context.Context, userID string, cost, dailyLimit int, now time.Time) (models.QuotaState, error)

	// Refund atomically credits amount back (never dropping daily_used
	// below zero), for credits of a reservation that went unused.
	Refund(ctx context.Context, userID string, amount int) (models.QuotaState, error)

	Get(ctx context.Context, userID string) (models.QuotaState, error)
}

// applyResetIfDue rolls a state's daily_used to zero and bumps
// last_reset_date when now has crossed into a new UTC calendar day since
// the last reset. Shared by both Store implementations so they can't drift.
func applyResetIfDue(state models.QuotaState, now time.Time) models.QuotaState {
	if state.NeedsReset(now) {
		state.DailyUsed = 0
		state.LastResetDate = now.UTC()
	}
	return state
}

// PostgresStore persists quota state in the quota_state table, using a
// SELECT ... FOR UPDATE transaction for every reserve/refund exactly like
// taskstore's MergeUpdate — the row is the single coordination point, never
// a cached in-memory value.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (models.QuotaState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, daily_used, daily_limit, last_reset_date FROM quota_state WHERE user_id = $1`, userID)
	return scanQuotaState(row)
}

func (s *PostgresStore) Reserve(ctx context.Context, userID string, cost, dailyLimit int, now time.Time) (models.QuotaState, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QuotaState{}, fmt.Errorf("quotastore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO quota_state (user_id, daily_used, daily_limit, last_reset_date)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET daily_limit = EXCLUDED.daily_limit
		RETURNING user_id, daily_used, daily_limit, last_reset_date
		`, userID, dailyLimit, now.UTC())
	state, err := scanQuotaState(row)
	if err != nil {
		return models.QuotaState{}, err
	}

	state = applyResetIfDue(state, now)

	if state.DailyUsed+cost > state.DailyLimit {
		// Persist the reset even on a rejected reservation, so a quota
		// check right after midnight doesn't keep re-evaluating against
		// yesterday's used count.
		if err := s.write(ctx, tx, state); err != nil {
			return models.QuotaState{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return models.QuotaState{}, fmt.Errorf("quotastore: commit: %w", err)
		}
		return state, ErrInsufficientCredits
	}

	state.DailyUsed += cost
	if err := s.write(ctx, tx, state); err != nil {
		return models.QuotaState{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.QuotaState{}, fmt.Errorf("quotastore: commit: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) Refund(ctx context.Context, userID string, amount int) (models.QuotaState, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QuotaState{}, fmt.Errorf("quotastore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT user_id, daily_used, daily_limit, last_reset_date FROM quota_state WHERE user_id = $1 FOR UPDATE`, userID)
	state, err := scanQuotaState(row)
	if err != nil {
		return models.QuotaState{}, err
	}

	state.DailyUsed -= amount
	if state.DailyUsed < 0 {
		state.DailyUsed = 0
	}
	if err := s.write(ctx, tx, state); err != nil {
		return models.QuotaState{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.QuotaState{}, fmt.Errorf("quotastore: commit: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) write(ctx context.Context, tx pgx.Tx, state models.QuotaState) error {
	_, err := tx.Exec(ctx, `
		UPDATE quota_state SET daily_used = $2, daily_limit = $3, last_reset_date = $4 WHERE user_id = $1`,
		state.UserID, state.DailyUsed, state.DailyLimit, state.LastResetDate)
	if err != nil {
		return fmt.Errorf("quotastore: update: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuotaState(row rowScanner) (models.QuotaState, error) {
	var q models.QuotaState
	if err := row.Scan(&q.UserID, &q.DailyUsed, &q.DailyLimit, &q.LastResetDate); err != nil {
		return models.QuotaState{}, fmt.Errorf("quotastore: scan: %w", err)
	}
	return q, nil
}

// MemoryStore is the in-process Store for tests: a per-user mutex guards
// each user's full reserve/reset/write cycle so concurrent reservations for
// the same user still serialize, matching the Postgres row-lock's behavior.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]models.QuotaState
	locks  map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[string]models.QuotaState),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (models.QuotaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID], nil
}

func (s *MemoryStore) Reserve(ctx context.Context, userID string, cost, dailyLimit int, now time.Time) (models.QuotaState, error) {
	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	state, ok := s.states[userID]
	s.mu.Unlock()
	if !ok {
		state = models.QuotaState{UserID: userID, DailyLimit: dailyLimit, LastResetDate: now.UTC()}
	}
	state.DailyLimit = dailyLimit
	state = applyResetIfDue(state, now)

	if state.DailyUsed+cost > state.DailyLimit {
		s.mu.Lock()
		s.states[userID] = state
		s.mu.Unlock()
		return state, ErrInsufficientCredits
	}

	state.DailyUsed += cost
	s.mu.Lock()
	s.states[userID] = state
	s.mu.Unlock()
	return state, nil
}

func (s *MemoryStore) Refund(ctx context.Context, userID string, amount int) (models.QuotaState, error) {
	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	state := s.states[userID]
	s.mu.Unlock()

	state.DailyUsed -= amount
	if state.DailyUsed < 0 {
		state.DailyUsed = 0
	}

	s.mu.Lock()
	s.states[userID] = state
	s.mu.Unlock()
	return state, nil
}
