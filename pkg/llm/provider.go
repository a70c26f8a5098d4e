// Package llm provides the vendor-agnostic Provider abstraction the agent
// layer calls through: text generation, JSON generation, and grounded
// (search-augmented) generation, each wrapped in retry and circuit-breaker
// resilience before it ever reaches a vendor HTTP or gRPC backend.
package llm

import (
	"context"
	"time"
)

// DefaultCallTimeout is the per-call hard deadline applied when CallConfig
// leaves Timeout unset: spec'd at 60s, enforced independently of whatever
// timeout the vendor SDK/HTTP client applies on its own.
const DefaultCallTimeout = 60 * time.Second

// DeepResearchSynthesisTimeout is the longer per-call deadline the deep
// research workflow's final synthesis call uses in place of
// DefaultCallTimeout.
const DeepResearchSynthesisTimeout = 120 * time.Second

// CallConfig carries the per-call knobs an agent or coordinator sets: which
// model to address, how much of the token budget this call may use, and an
// absolute deadline. Providers never read process-wide config directly —
// everything they need crosses this boundary explicitly.
type CallConfig struct {
	Model            string
	TokenBudgetBytes int
	MaxOutputTokens  int
	Temperature      float64
	Timeout          time.Duration
}

// timeout returns cfg.Timeout, or DefaultCallTimeout when unset.
func (cfg CallConfig) timeout() time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return DefaultCallTimeout
}

// Provider is the vendor-agnostic contract every backend (HTTP vendor API,
// gRPC model gateway, or the deterministic dummy) implements. Grounded on
// the teacher's agent.LLMClient shape, collapsed from a streaming-chunk API
// to three call-shaped methods since this core issues bounded single-shot
// calls rather than ReAct tool loops.
type Provider interface {
	// GenerateText returns the model's free-text response.
	GenerateText(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error)

	// GenerateJSON returns the model's response parsed as a JSON object.
	// schemaHint is advisory prompt text describing the expected shape; it
	// is not a strict JSON Schema enforced by the provider.
	GenerateJSON(ctx context.Context, prompt, systemPrompt, schemaHint string, cfg CallConfig) (map[string]any, error)

	// GenerateWithSearch behaves like GenerateText but instructs the
	// backend to ground its answer in a live web search when the backend
	// supports it; backends that don't support grounding fall back to
	// GenerateText semantics.
	GenerateWithSearch(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error)

	// Healthcheck reports whether the backend is currently reachable,
	// without counting toward the circuit breaker's failure tally.
	Healthcheck(ctx context.Context) error

	// Name identifies the backend for logging and metrics.
	Name() string
}
