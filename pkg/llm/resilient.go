package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// resilientProvider wraps a backend Provider with the retry and
// circuit-breaker behavior spec.md requires of every provider call: a
// breaker per provider instance (not shared across providers), retried
// with exponential backoff, rejecting outright when the breaker is open.
type resilientProvider struct {
	backend Provider
	breaker *breaker
	retry   retryConfig
}

func newResilientProvider(backend Provider) *resilientProvider {
	return &resilientProvider{
		backend: backend,
		breaker: newBreaker(defaultBreakerConfig()),
		retry:   defaultRetryConfig(),
	}
}

func (p *resilientProvider) Name() string { return p.backend.Name() }

func (p *resilientProvider) Healthcheck(ctx context.Context) error {
	return p.backend.Healthcheck(ctx)
}

func (p *resilientProvider) GenerateText(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	var out string
	err := p.call(ctx, "text", cfg.timeout(), func(ctx context.Context) error {
		var callErr error
		out, callErr = p.backend.GenerateText(ctx, prompt, systemPrompt, cfg)
		if callErr == nil {
			callErr = checkMinLength(out)
		}
		return callErr
	})
	return out, err
}

func (p *resilientProvider) GenerateJSON(ctx context.Context, prompt, systemPrompt, schemaHint string, cfg CallConfig) (map[string]any, error) {
	var out map[string]any
	err := p.call(ctx, "json", cfg.timeout(), func(ctx context.Context) error {
		var callErr error
		out, callErr = p.backend.GenerateJSON(ctx, prompt, systemPrompt, schemaHint, cfg)
		return callErr
	})
	return out, err
}

func (p *resilientProvider) GenerateWithSearch(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	var out string
	err := p.call(ctx, "search", cfg.timeout(), func(ctx context.Context) error {
		var callErr error
		out, callErr = p.backend.GenerateWithSearch(ctx, prompt, systemPrompt, cfg)
		if callErr == nil {
			callErr = checkMinLength(out)
		}
		return callErr
	})
	return out, err
}

// checkMinLength enforces spec's "empty or too-short (<100 chars) fails
// with EmptyResponse" rule for free-text generation calls.
func checkMinLength(text string) error {
	if len(text) < minResponseLen {
		return ErrEmptyResponse
	}
	return nil
}

// call is the shared breaker+retry envelope around a single backend
// invocation. The breaker's Allow/RecordSuccess/RecordFailure surround the
// entire retried sequence: a burst of retries against a failing provider
// should trip the breaker exactly like one failed call would, not reset it
// between attempts. timeout bounds the whole sequence (including retries)
// with an absolute deadline enforced independently of whatever timeout the
// backend's own HTTP client or SDK applies.
func (p *resilientProvider) call(ctx context.Context, kind string, timeout time.Duration, fn func(context.Context) error) error {
	name := p.backend.Name()
	if !p.breaker.Allow() {
		slog.Warn("llm call rejected, circuit open", "provider", name)
		callResult.WithLabelValues(name, kind, "circuit_open").Inc()
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := withRetry(callCtx, p.retry, func() error { return fn(callCtx) })
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = ErrTimeout
	}
	callLatency.WithLabelValues(name, kind).Observe(time.Since(start).Seconds())

	if err != nil {
		p.breaker.RecordFailure()
		observeBreakerState(name, p.breaker.State())
		callResult.WithLabelValues(name, kind, "error").Inc()
		return err
	}
	p.breaker.RecordSuccess()
	observeBreakerState(name, p.breaker.State())
	callResult.WithLabelValues(name, kind, "success").Inc()
	return nil
}
