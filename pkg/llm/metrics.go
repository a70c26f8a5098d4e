package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for every resilientProvider instance, labeled by
// backend name so a dashboard can break latency and breaker state down per
// vendor. Registered once at package init against the default registry,
// the same pattern the domain stack's agentflow/semspec repos use for
// per-component gauges.
var (
	callLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memocore",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Latency of provider calls, including retries, by provider and call kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "kind"})

	callResult = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memocore",
		Subsystem: "llm",
		Name:      "call_total",
		Help:      "Provider calls by provider, call kind, and outcome.",
	}, []string{"provider", "kind", "outcome"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "memocore",
		Subsystem: "llm",
		Name:      "breaker_state",
		Help:      "Circuit breaker state per provider: 0=closed, 1=open, 2=half-open.",
	}, []string{"provider"})
)

func observeBreakerState(provider string, state CircuitState) {
	breakerState.WithLabelValues(provider).Set(float64(state))
}
