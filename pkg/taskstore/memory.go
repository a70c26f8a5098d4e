package taskstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quantmemo/memocore/pkg/models"
)

// MemoryStore is the in-process Store used by tests and, per spec.md §4.7,
// as the "advisory per-task mutex" fallback when no row-locking persistence
// layer is available. Every task id gets its own *sync.Mutex so concurrent
// updates to different tasks never contend, while concurrent updates to the
// same task serialize exactly like a Postgres row lock would.
type MemoryStore struct {
	mu    sync.Mutex // guards tasks and locks maps themselves, not task contents
	tasks map[string]models.Task
	locks map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]models.Task),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *MemoryStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *MemoryStore) Create(ctx context.Context, t models.Task) error {
	l := s.lockFor(t.ID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	if t.ExecutionHistory == nil {
		t.ExecutionHistory = []models.HistoryEntry{}
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}
	return t, nil
}

// MergeUpdate takes the per-task advisory mutex for the full
// read-merge-write cycle, so N goroutines racing on the same task id never
// interleave their reads and writes — each sees the prior goroutine's
// fully-applied delta.
func (s *MemoryStore) MergeUpdate(ctx context.Context, id string, delta Delta) (models.Task, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	current, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return models.Task{}, ErrTaskNotFound
	}

	next, changed, err := applyDelta(current, delta)
	if err != nil {
		return current, err
	}
	if !changed {
		return current, nil
	}

	s.mu.Lock()
	s.tasks[id] = next
	s.mu.Unlock()
	return next, nil
}

// ClaimNextPending picks the oldest PENDING task under the store-wide lock
// (the in-memory analogue of a row-level FOR UPDATE SKIP LOCKED query —
// there is nothing to "skip" since the whole scan-and-claim happens while
// holding s.mu) and transitions it to RUNNING before releasing the lock, so
// two goroutines calling this concurrently never claim the same task.
func (s *MemoryStore) ClaimNextPending(ctx context.Context, workerID string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldestID string
	var oldestCreatedAt time.Time
	found := false
	for id, t := range s.tasks {
		if t.Status != models.TaskStatusPending {
			continue
		}
		if !found || t.CreatedAt.Before(oldestCreatedAt) {
			oldestID, oldestCreatedAt, found = id, t.CreatedAt, true
		}
	}
	if !found {
		return models.Task{}, ErrNoPendingTasks
	}

	running := models.TaskStatusRunning
	next, _, err := applyDelta(s.tasks[oldestID], Delta{
		Status:       &running,
		HistoryEntry: &models.HistoryEntry{Phase: "claim", Event: "claimed", Detail: workerID},
	})
	if err != nil {
		return models.Task{}, err
	}
	s.tasks[oldestID] = next
	return next, nil
}

// pendingIDsSorted is a test helper kept alongside ClaimNextPending so its
// FIFO ordering claim is easy to verify without reaching into s.tasks
// directly from _test.go files in this package.
func (s *MemoryStore) pendingIDsSorted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tasks))
	for id, t := range s.tasks {
		if t.Status == models.TaskStatusPending {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return s.tasks[ids[i]].CreatedAt.Before(s.tasks[ids[j]].CreatedAt) })
	return ids
}
