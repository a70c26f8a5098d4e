package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/taskstore"
)

type fakeExecutor struct {
	mu      sync.Mutex
	seen    []string
	execErr error
	delay   time.Duration
}

func (f *fakeExecutor) Execute(ctx context.Context, task models.Task) error {
	f.mu.Lock()
	f.seen = append(f.seen, task.ID)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.execErr
}

func (f *fakeExecutor) seenIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.seen))
	copy(out, f.seen)
	return out
}

func testConfig() Config {
	return Config{
		WorkerCount:        1,
		MaxConcurrentTasks: 1,
		PollInterval:       10 * time.Millisecond,
		PollIntervalJitter: 2 * time.Millisecond,
	}
}

func TestWorker_PollAndProcess_ClaimsAndExecutesPendingTask(t *testing.T) {
	store := taskstore.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), models.Task{ID: "task-1", Status: models.TaskStatusPending}))

	executor := &fakeExecutor{}
	worker := NewWorker("w-1", "pod-1", store, testConfig(), executor)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	require.Eventually(t, func() bool { return len(executor.seenIDs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"task-1"}, executor.seenIDs())

	cancel()
	worker.Stop()
}

func TestWorker_PollAndProcess_IdlesWhenNoPendingTasks(t *testing.T) {
	store := taskstore.NewMemoryStore()
	executor := &fakeExecutor{}
	worker := NewWorker("w-1", "pod-1", store, testConfig(), executor)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, executor.seenIDs())

	cancel()
	worker.Stop()
}

func TestWorker_Stop_WaitsForInFlightTaskToFinish(t *testing.T) {
	store := taskstore.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), models.Task{ID: "task-1", Status: models.TaskStatusPending}))

	var finished atomic.Bool
	executor := &fakeExecutor{delay: 100 * time.Millisecond}
	worker := NewWorker("w-1", "pod-1", store, testConfig(), executor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	require.Eventually(t, func() bool { return len(executor.seenIDs()) == 1 }, time.Second, 5*time.Millisecond)

	go func() {
		worker.Stop()
		finished.Store(true)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, finished.Load(), "Stop must block until the in-flight task's Execute call returns")

	require.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
}
