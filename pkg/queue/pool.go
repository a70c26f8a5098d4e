package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quantmemo/memocore/pkg/taskstore"
)

// WorkerPool manages a pool of queue workers, grounded on the teacher's
// pkg/queue/pool.go — collapsed to this core's needs: no orphan-recovery
// scan (a single-process deployment has no other pod to recover an
// orphaned claim from) and cancellation delegates straight to the
// Orchestrator's own run registry instead of a pool-owned session map.
type WorkerPool struct {
	podID     string
	claimer   taskstore.Claimer
	config    Config
	executor  TaskExecutor
	canceller Canceller
	workers   []*Worker
	started   bool
	mu        sync.Mutex
}

func NewWorkerPool(podID string, claimer taskstore.Claimer, cfg Config, executor TaskExecutor, canceller Canceller) *WorkerPool {
	return &WorkerPool{
		podID: podID, claimer: claimer, config: cfg, executor: executor, canceller: canceller,
		workers: make([]*Worker, 0, cfg.WorkerCount),
	}
}

// Start spawns cfg.WorkerCount worker goroutines. Safe to call once;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)
	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.claimer, p.config, p.executor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}
}

// Stop signals every worker to stop and waits for in-flight tasks to
// finish (graceful shutdown — a worker finishes its current claim before
// exiting its poll loop).
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully", "pod_id", p.podID)
	for _, w := range p.workers {
		w.Stop()
	}
	slog.Info("worker pool stopped", "pod_id", p.podID)
}

// CancelTask requests cancellation of taskID if it is currently running on
// this pod. Returns false if the task isn't running here.
func (p *WorkerPool) CancelTask(taskID string) bool {
	if p.canceller == nil {
		return false
	}
	return p.canceller.Cancel(taskID)
}

// Health reports the pool's current worker activity.
func (p *WorkerPool) Health() PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		stats[i] = w.Health()
		if stats[i].Status == string(WorkerStatusWorking) {
			active++
		}
	}
	return PoolHealth{
		PodID:         p.podID,
		TotalWorkers:  len(p.workers),
		ActiveWorkers: active,
		ActiveTasks:   active,
		MaxConcurrent: p.config.MaxConcurrentTasks,
		WorkerStats:   stats,
	}
}
