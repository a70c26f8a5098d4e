package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantmemo/memocore/pkg/models"
)

// ErrPersistenceConflict indicates a transactional write lost a race with
// another writer (a Postgres serialization failure) and the bounded retry
// in MergeUpdate gave up. Mirrors spec.md §7's PersistenceConflict kind.
var ErrPersistenceConflict = errors.New("taskstore: persistence conflict")

const maxMergeAttempts = 5

// PostgresStore is the production Store: every MergeUpdate opens a short
// transaction, SELECTs the row FOR UPDATE (row-level lock, the primary
// mechanism spec.md §4.7 asks for), applies the delta in Go, and commits —
// retrying with jittered backoff on a serialization failure before
// escalating to ErrPersistenceConflict. Grounded on the teacher's
// queue/worker.go claimNextSession transaction shape.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, t models.Task) error {
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	if t.ExecutionHistory == nil {
		t.ExecutionHistory = []models.HistoryEntry{}
	}
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("taskstore: marshal metadata: %w", err)
	}
	history, err := json.Marshal(t.ExecutionHistory)
	if err != nil {
		return fmt.Errorf("taskstore: marshal history: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (id, user_id, type, status, progress, metadata, execution_history, result_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, nullable(t.UserID), t.Type, string(t.Status), t.Progress, metadata, history, nullable(t.ResultRef), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("taskstore: insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, type, status, progress, metadata, execution_history, result_ref, created_at, updated_at
		FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// MergeUpdate implements the atomic-merge rule: SELECT ... FOR UPDATE opens
// a row-level lock for the duration of the transaction, so a concurrent
// MergeUpdate on the same task blocks until this one commits — no two
// writers can read the same "before" state and silently overwrite one
// another's delta, which a naive read-then-write against a cached copy
// would allow.
func (s *PostgresStore) MergeUpdate(ctx context.Context, id string, delta Delta) (models.Task, error) {
	var result models.Task

	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		task, changed, err := s.mergeOnce(ctx, id, delta)
		if err == nil {
			if !changed {
				return task, nil
			}
			return task, nil
		}
		if !isSerializationFailure(err) {
			return models.Task{}, err
		}

		// jittered backoff before retrying a lost race, per spec.md §7's
		// "bounded, 5 attempts with jitter" PersistenceConflict policy.
		delay := time.Duration(10*(attempt+1)) * time.Millisecond
		delay += time.Duration(rand.Int64N(int64(delay) / 2))
		select {
		case <-ctx.Done():
			return models.Task{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, fmt.Errorf("%w: exhausted %d attempts merging task %s", ErrPersistenceConflict, maxMergeAttempts, id)
}

// ClaimNextPending implements Claimer using SELECT ... FOR UPDATE SKIP
// LOCKED, grounded on the teacher's queue/worker.go claimNextSession: the
// SKIP LOCKED clause means a second worker racing this same query never
// blocks on the row a first worker is already claiming — it simply moves
// on to the next PENDING row instead.
func (s *PostgresStore) ClaimNextPending(ctx context.Context, workerID string) (models.Task, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Task{}, fmt.Errorf("taskstore: begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, user_id, type, status, progress, metadata, execution_history, result_ref, created_at, updated_at
		FROM tasks WHERE status = $1
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, string(models.TaskStatusPending))
	current, err := scanTask(row)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			return models.Task{}, ErrNoPendingTasks
		}
		return models.Task{}, err
	}

	running := models.TaskStatusRunning
	next, _, err := applyDelta(current, Delta{
		Status:       &running,
		HistoryEntry: &models.HistoryEntry{Phase: "claim", Event: "claimed", Detail: workerID},
	})
	if err != nil {
		return models.Task{}, err
	}

	metadata, err := json.Marshal(next.Metadata)
	if err != nil {
		return models.Task{}, fmt.Errorf("taskstore: marshal metadata: %w", err)
	}
	history, err := json.Marshal(next.ExecutionHistory)
	if err != nil {
		return models.Task{}, fmt.Errorf("taskstore: marshal history: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE tasks SET status = $2, progress = $3, metadata = $4, execution_history = $5, result_ref = $6, updated_at = $7
		WHERE id = $1`,
		next.ID, string(next.Status), next.Progress, metadata, history, nullable(next.ResultRef), next.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("taskstore: claim update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Task{}, fmt.Errorf("taskstore: commit claim: %w", err)
	}

	return next, nil
}

func (s *PostgresStore) mergeOnce(ctx context.Context, id string, delta Delta) (models.Task, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return models.Task{}, false, fmt.Errorf("taskstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, user_id, type, status, progress, metadata, execution_history, result_ref, created_at, updated_at
		FROM tasks WHERE id = $1 FOR UPDATE`, id)
	current, err := scanTask(row)
	if err != nil {
		return models.Task{}, false, err
	}

	next, changed, err := applyDelta(current, delta)
	if err != nil {
		return models.Task{}, false, err
	}
	if !changed {
		return current, false, nil
	}

	metadata, err := json.Marshal(next.Metadata)
	if err != nil {
		return models.Task{}, false, fmt.Errorf("taskstore: marshal metadata: %w", err)
	}
	history, err := json.Marshal(next.ExecutionHistory)
	if err != nil {
		return models.Task{}, false, fmt.Errorf("taskstore: marshal history: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE tasks SET status = $2, progress = $3, metadata = $4, execution_history = $5, result_ref = $6, updated_at = $7
		WHERE id = $1`,
		id, string(next.Status), next.Progress, metadata, history, nullable(next.ResultRef), next.UpdatedAt)
	if err != nil {
		return models.Task{}, false, fmt.Errorf("taskstore: update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Task{}, false, fmt.Errorf("taskstore: commit: %w", err)
	}

	return next, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t              models.Task
		userID         *string
		resultRef      *string
		status         string
		metadataRaw    []byte
		historyRaw     []byte
	)

	err := row.Scan(&t.ID, &userID, &t.Type, &status, &t.Progress, &metadataRaw, &historyRaw, &resultRef, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("taskstore: scan task: %w", err)
	}

	t.Status = models.TaskStatus(status)
	if userID != nil {
		t.UserID = *userID
	}
	if resultRef != nil {
		t.ResultRef = *resultRef
	}
	if err := json.Unmarshal(metadataRaw, &t.Metadata); err != nil {
		return models.Task{}, fmt.Errorf("taskstore: unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(historyRaw, &t.ExecutionHistory); err != nil {
		return models.Task{}, fmt.Errorf("taskstore: unmarshal history: %w", err)
	}
	return t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isSerializationFailure(err error) bool {
	// pgx surfaces Postgres SQLSTATE 40001 (serialization_failure) and
	// 40P01 (deadlock_detected) as *pgconn.PgError; matching on the string
	// form keeps this file free of an extra import for two constant codes.
	return err != nil && (contains(err.Error(), "SQLSTATE 40001") || contains(err.Error(), "SQLSTATE 40P01"))
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
