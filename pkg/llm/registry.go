package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quantmemo/memocore/pkg/config"
)

// ReportKind identifies which of config.ModelMap's entries a call should
// use, so callers ask for "the model for this kind of report" rather than
// threading model-name strings through the coordinator.
type ReportKind string

const (
	ReportKindStandard              ReportKind = "report"
	ReportKindDailyPick             ReportKind = "daily_pick"
	ReportKindDeepResearchSynthesis ReportKind = "deep_research_synthesis"
	ReportKindPlanning              ReportKind = "planning"
	ReportKindQuestionAnswer        ReportKind = "question_answer"
)

// Registry builds and caches resilient Provider instances from
// config.ProviderRegistry entries, lazily — a provider is only constructed
// (and only then needs its API key present) the first time something asks
// for it. Grounded on the teacher's LLMProviderRegistry defensive-access
// pattern, extended with lazy construction since here a "provider config"
// and a "live provider client" are different objects.
type Registry struct {
	cfg *config.ProviderRegistry

	mu        sync.Mutex
	instances map[config.ProviderID]Provider
}

func NewRegistry(cfg *config.ProviderRegistry) *Registry {
	return &Registry{
		cfg:       cfg,
		instances: make(map[config.ProviderID]Provider),
	}
}

// Get returns the provider for id, building it on first use. If id is not
// configured, it returns the dummy provider rather than an error — quota
// and agent code treat "unavailable" uniformly regardless of cause.
func (r *Registry) Get(id config.ProviderID) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.instances[id]; ok {
		return p
	}

	p := r.build(id)
	r.instances[id] = p
	return p
}

func (r *Registry) build(id config.ProviderID) Provider {
	pc, err := r.cfg.Get(id)
	if err != nil {
		slog.Warn("llm provider not configured, using dummy", "provider", id)
		return newResilientProvider(newDummyProvider())
	}

	switch pc.Type {
	case "http":
		return newResilientProvider(newHTTPProvider(string(id), pc.BaseURL, pc.APIKeyEnv))
	case "grpc":
		backend, err := newGRPCProvider(string(id), pc.BaseURL)
		if err != nil {
			slog.Error("failed to dial grpc model gateway, using dummy", "provider", id, "error", err)
			return newResilientProvider(newDummyProvider())
		}
		return newResilientProvider(backend)
	case "dummy":
		return newResilientProvider(newDummyProvider())
	default:
		slog.Warn("unknown provider type, using dummy", "provider", id, "type", pc.Type)
		return newResilientProvider(newDummyProvider())
	}
}

// GetWithFallback returns primary's provider, or falls back to the
// secondary id if primary's circuit breaker is currently open. The
// fallback decision itself never calls the model or Healthcheck — it only
// reads the breaker state of primary's resilient wrapper. Callers may skip
// it by calling Get directly when they already know which provider they
// want.
func (r *Registry) GetWithFallback(ctx context.Context, primary, secondary config.ProviderID) Provider {
	p := r.Get(primary)
	if rp, ok := p.(*resilientProvider); ok && rp.breaker.State() == StateOpen {
		slog.Info("primary provider circuit open, falling back", "primary", primary, "secondary", secondary)
		return r.Get(secondary)
	}
	return p
}

// ForReport resolves and returns the model name configured for kind, or an
// error for an unknown kind.
func ForReport(cfg *config.Config, kind ReportKind) (string, error) {
	switch kind {
	case ReportKindStandard:
		return cfg.ModelMap.Report, nil
	case ReportKindDailyPick:
		return cfg.ModelMap.DailyPick, nil
	case ReportKindDeepResearchSynthesis:
		return cfg.ModelMap.DeepResearchSynthesis, nil
	case ReportKindPlanning:
		return cfg.ModelMap.Planning, nil
	case ReportKindQuestionAnswer:
		return cfg.ModelMap.QuestionAnswer, nil
	default:
		return "", fmt.Errorf("llm: unknown report kind %q", kind)
	}
}
