// Package queue drives queued deep-research Tasks to completion: a pool of
// workers repeatedly claims the oldest PENDING task (atomically, via
// taskstore.Claimer) and runs it through a TaskExecutor until the task
// reaches a terminal status. Grounded on the teacher's pkg/queue
// worker-pool/poll-loop shape, adapted from ent's AlertSession + Ent
// transactions to taskstore.Store/Claimer and from SessionExecutor to a
// research.Orchestrator-backed TaskExecutor.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/quantmemo/memocore/pkg/models"
)

// ErrNoTasksAvailable indicates no PENDING task was available to claim.
var ErrNoTasksAvailable = errors.New("queue: no tasks available")

// ErrAtCapacity indicates the global concurrent-task limit has been reached.
var ErrAtCapacity = errors.New("queue: at capacity")

// TaskExecutor runs one claimed Task to a terminal status. It owns the
// entire run internally (phase execution, progress persistence); the
// worker only handles claiming and capacity bookkeeping.
type TaskExecutor interface {
	Execute(ctx context.Context, task models.Task) error
}

// Config controls worker-pool sizing and polling cadence.
type Config struct {
	WorkerCount           int
	MaxConcurrentTasks    int
	PollInterval          time.Duration
	PollIntervalJitter    time.Duration
	TaskTimeout           time.Duration
}

// PoolHealth reports the current state of a WorkerPool.
type PoolHealth struct {
	PodID          string         `json:"pod_id"`
	TotalWorkers   int            `json:"total_workers"`
	ActiveWorkers  int            `json:"active_workers"`
	ActiveTasks    int            `json:"active_tasks"`
	MaxConcurrent  int            `json:"max_concurrent"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth reports the current state of a single Worker.
type WorkerHealth struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	CurrentTaskID   string `json:"current_task_id,omitempty"`
	TasksProcessed  int    `json:"tasks_processed"`
}
