package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a deterministic Provider used to exercise the resilient
// wrapper without hitting a network call.
type fakeBackend struct {
	calls   int
	failN   int // first failN calls fail with errToReturn
	errToReturn error
	text    string
}

func (f *fakeBackend) Name() string { return "fake" }
func (f *fakeBackend) Healthcheck(ctx context.Context) error { return nil }

func (f *fakeBackend) GenerateText(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	f.calls++
	if f.calls <= f.failN {
		return "", f.errToReturn
	}
	return f.text, nil
}

func (f *fakeBackend) GenerateJSON(ctx context.Context, prompt, systemPrompt, schemaHint string, cfg CallConfig) (map[string]any, error) {
	return nil, nil
}

func (f *fakeBackend) GenerateWithSearch(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	return f.GenerateText(ctx, prompt, systemPrompt, cfg)
}

func TestResilientProvider_RetriesThenSucceeds(t *testing.T) {
	longText := "ok, here is a sufficiently long synthetic analyst response that clears the minimum response length threshold for free-text generation."
	backend := &fakeBackend{failN: 2, errToReturn: ErrProviderUnavailable, text: longText}
	p := newResilientProvider(backend)
	p.retry.InitialDelay = 0
	p.retry.MaxDelay = 0

	out, err := p.GenerateText(context.Background(), "prompt", "sys", CallConfig{})
	require.NoError(t, err)
	assert.Equal(t, longText, out)
	assert.Equal(t, StateClosed, p.breaker.State())
}

func TestResilientProvider_OpensBreakerAfterRepeatedFailures(t *testing.T) {
	backend := &fakeBackend{failN: 1000, errToReturn: ErrProviderUnavailable}
	p := newResilientProvider(backend)
	p.retry.MaxAttempts = 1
	p.retry.InitialDelay = 0

	for i := 0; i < defaultBreakerConfig().FailureThreshold; i++ {
		_, err := p.GenerateText(context.Background(), "prompt", "sys", CallConfig{})
		require.Error(t, err)
	}

	assert.Equal(t, StateOpen, p.breaker.State())

	_, err := p.GenerateText(context.Background(), "prompt", "sys", CallConfig{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
