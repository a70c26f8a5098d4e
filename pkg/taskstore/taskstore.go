// Package taskstore durably persists models.Task and enforces the
// atomic-merge rule spec.md §4.7 requires: every update is a read-under-lock,
// merge-delta, write-back against the single persisted row, never a
// read-modify-write against a shared in-memory copy. Grounded on the
// teacher's queue/worker.go claimNextSession (SELECT ... FOR UPDATE inside a
// transaction) generalized from "claim one row" to "merge an arbitrary delta
// into one row."
package taskstore

import (
	"context"
	"errors"
	"time"

	"github.com/quantmemo/memocore/pkg/models"
)

// ErrTaskNotFound indicates no task exists with the given id.
var ErrTaskNotFound = errors.New("taskstore: task not found")

// ErrTerminalStateImmutable indicates an attempt to transition a task that
// already holds a terminal Status (SUCCESS|FAILED|CANCELLED) — spec.md's
// "terminal status is write-once" invariant.
var ErrTerminalStateImmutable = errors.New("taskstore: terminal status is write-once")

// Delta is one discrete update to merge into a Task row. Every non-nil/
// non-empty field is applied by MergeUpdate's rules (spec.md §4.7):
// Progress is raised to max(old, new), HistoryEntry is appended (never
// replacing prior entries), Metadata is merged one level deep (new keys
// win, nested maps are replaced wholesale), and Status is applied only if
// the prior status is non-terminal.
type Delta struct {
	// DeltaID, when non-empty, makes this update idempotent: if a history
	// entry already carries this DeltaID, MergeUpdate is a no-op and
	// returns the task unchanged.
	DeltaID      string
	Progress     *int
	HistoryEntry *models.HistoryEntry
	Metadata     map[string]any
	Status       *models.TaskStatus
	ResultRef    *string
}

// Store is the durable Task persistence contract. PostgresStore is the
// production implementation (row-level lock via SELECT ... FOR UPDATE);
// MemoryStore is the advisory-mutex fallback spec.md §4.7 prescribes for
// persistence layers without row locks, and is what the in-process test
// suite runs against.
type Store interface {
	Create(ctx context.Context, t models.Task) error
	Get(ctx context.Context, id string) (models.Task, error)
	MergeUpdate(ctx context.Context, id string, delta Delta) (models.Task, error)
}

// ErrNoPendingTasks indicates the queue has nothing left to claim right now.
var ErrNoPendingTasks = errors.New("taskstore: no pending tasks")

// Claimer atomically hands one PENDING task to a caller and marks it RUNNING
// in the same transaction, so two workers racing ClaimNextPending can never
// both receive the same row. PostgresStore implements this with
// `SELECT ... FOR UPDATE SKIP LOCKED`; MemoryStore with its own advisory
// locking.
type Claimer interface {
	ClaimNextPending(ctx context.Context, workerID string) (models.Task, error)
}

// applyDelta is the pure merge function both implementations share: given
// the current row and a delta, compute the next row. Kept free of any
// storage concern so Postgres and in-memory backends can't drift in their
// merge semantics.
func applyDelta(current models.Task, delta Delta) (models.Task, bool, error) {
	if delta.DeltaID != "" {
		for _, h := range current.ExecutionHistory {
			if h.DeltaID == delta.DeltaID {
				return current, false, nil
			}
		}
	}

	next := current
	next.UpdatedAt = time.Now().UTC()

	if delta.Progress != nil && *delta.Progress > next.Progress {
		next.Progress = *delta.Progress
	}

	if delta.HistoryEntry != nil {
		entry := *delta.HistoryEntry
		entry.DeltaID = delta.DeltaID
		if entry.Ts.IsZero() {
			entry.Ts = next.UpdatedAt
		}
		grown := make([]models.HistoryEntry, len(current.ExecutionHistory), len(current.ExecutionHistory)+1)
		copy(grown, current.ExecutionHistory)
		next.ExecutionHistory = append(grown, entry)
	}

	if len(delta.Metadata) > 0 {
		merged := make(map[string]any, len(next.Metadata)+len(delta.Metadata))
		for k, v := range next.Metadata {
			merged[k] = v
		}
		for k, v := range delta.Metadata {
			merged[k] = v
		}
		next.Metadata = merged
	}

	if delta.Status != nil {
		if current.Status.IsTerminal() && *delta.Status != current.Status {
			return current, false, ErrTerminalStateImmutable
		}
		next.Status = *delta.Status
	}

	if delta.ResultRef != nil {
		next.ResultRef = *delta.ResultRef
	}

	return next, true, nil
}
