package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker throughput counters and gauges, labeled by pod so a multi-pod
// deployment's dashboard can break processed/failed counts down per
// instance rather than only seeing a process-wide total.
var (
	tasksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memocore",
		Subsystem: "queue",
		Name:      "tasks_processed_total",
		Help:      "Tasks a worker has claimed and run to completion, regardless of outcome.",
	}, []string{"pod_id", "worker_id"})

	tasksFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memocore",
		Subsystem: "queue",
		Name:      "tasks_failed_total",
		Help:      "Tasks whose Execute call returned an error.",
	}, []string{"pod_id", "worker_id"})

	activeWorkers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "memocore",
		Subsystem: "queue",
		Name:      "active_workers",
		Help:      "Workers currently processing a task, by pod.",
	}, []string{"pod_id"})
)
