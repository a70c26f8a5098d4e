package queue

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"log/slog"

	"github.com/quantmemo/memocore/pkg/taskstore"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes tasks.
// Grounded on the teacher's pkg/queue/worker.go poll loop, collapsed to
// this core's needs: no Slack/event-stream notifications, and claiming
// goes through taskstore.Claimer (SELECT ... FOR UPDATE SKIP LOCKED)
// instead of an Ent transaction.
type Worker struct {
	id       string
	podID    string
	claimer  taskstore.Claimer
	config   Config
	executor TaskExecutor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

func NewWorker(id, podID string, claimer taskstore.Claimer, cfg Config, executor TaskExecutor) *Worker {
	return &Worker{
		id: id, podID: podID, claimer: claimer, config: cfg, executor: executor,
		stopCh: make(chan struct{}), status: WorkerStatusIdle, lastActivity: time.Now(),
	}
}

// Start begins the worker's poll loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for its current task (if any)
// to finish. Safe to call multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{ID: w.id, Status: string(w.status), CurrentTaskID: w.currentTaskID, TasksProcessed: w.tasksProcessed}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("queue worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("queue worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, queue worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, taskstore.ErrNoPendingTasks) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing task", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) pollAndProcess(ctx context.Context) error {
	task, err := w.claimer.ClaimNextPending(ctx, w.id)
	if err != nil {
		return err
	}

	log := slog.With("task_id", task.ID, "worker_id", w.id)
	log.Info("task claimed")

	w.setStatus(WorkerStatusWorking, task.ID)
	activeWorkers.WithLabelValues(w.podID).Inc()
	defer func() {
		w.setStatus(WorkerStatusIdle, "")
		activeWorkers.WithLabelValues(w.podID).Dec()
	}()

	taskCtx := ctx
	var cancel context.CancelFunc
	if w.config.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, w.config.TaskTimeout)
		defer cancel()
	}

	// Execute's error (ErrCancelled, ErrDeadlineExceeded, an agent/report
	// error, ...) has already been durably recorded on the task by the
	// executor itself — logging it here is diagnostic only, never a signal
	// to retry the task.
	if err := w.executor.Execute(taskCtx, task); err != nil {
		log.Warn("task run ended with an error", "error", err)
		tasksFailedTotal.WithLabelValues(w.podID, w.id).Inc()
	}

	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()
	tasksProcessedTotal.WithLabelValues(w.podID, w.id).Inc()

	log.Info("task processing complete")
	return nil
}

// pollInterval returns the poll duration with jitter, mirroring the
// teacher's worker.go pollInterval.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}
