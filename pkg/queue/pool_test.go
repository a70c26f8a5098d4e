package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/taskstore"
)

type fakeCanceller struct {
	cancelled []string
	result    bool
}

func (f *fakeCanceller) Cancel(taskID string) bool {
	f.cancelled = append(f.cancelled, taskID)
	return f.result
}

func TestWorkerPool_Start_ProcessesAllPendingTasksAcrossWorkers(t *testing.T) {
	store := taskstore.NewMemoryStore()
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.Create(context.Background(), models.Task{ID: id, Status: models.TaskStatusPending}))
	}

	executor := &fakeExecutor{}
	cfg := Config{WorkerCount: 3, MaxConcurrentTasks: 3, PollInterval: 5 * time.Millisecond, PollIntervalJitter: time.Millisecond}
	pool := NewWorkerPool("pod-1", store, cfg, executor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	require.Eventually(t, func() bool { return len(executor.seenIDs()) == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Stop()
}

func TestWorkerPool_Start_IsIdempotent(t *testing.T) {
	store := taskstore.NewMemoryStore()
	executor := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", store, testConfig(), executor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	pool.Start(ctx)

	assert.Len(t, pool.workers, 1, "a second Start call must not spawn duplicate workers")
	pool.Stop()
}

func TestWorkerPool_CancelTask_DelegatesToCanceller(t *testing.T) {
	store := taskstore.NewMemoryStore()
	canceller := &fakeCanceller{result: true}
	pool := NewWorkerPool("pod-1", store, testConfig(), &fakeExecutor{}, canceller)

	ok := pool.CancelTask("task-42")

	assert.True(t, ok)
	assert.Equal(t, []string{"task-42"}, canceller.cancelled)
}

func TestWorkerPool_CancelTask_FalseWhenNoCanceller(t *testing.T) {
	store := taskstore.NewMemoryStore()
	pool := NewWorkerPool("pod-1", store, testConfig(), &fakeExecutor{}, nil)

	assert.False(t, pool.CancelTask("task-42"))
}
