package llm

import "context"

// dummyProvider always fails with ErrProviderUnavailable. It exists so the
// "dummy" provider identifier from spec.md's configuration enum resolves to
// a real, harmless backend instead of a missing-provider error — useful for
// local development and for exercising fallback/downgrade paths in tests
// without a live vendor credential.
type dummyProvider struct{}

func newDummyProvider() Provider { return &dummyProvider{} }

func (p *dummyProvider) Name() string { return "dummy" }

func (p *dummyProvider) Healthcheck(ctx context.Context) error {
	return ErrProviderUnavailable
}

func (p *dummyProvider) GenerateText(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	return "", ErrProviderUnavailable
}

func (p *dummyProvider) GenerateJSON(ctx context.Context, prompt, systemPrompt, schemaHint string, cfg CallConfig) (map[string]any, error) {
	return nil, ErrProviderUnavailable
}

func (p *dummyProvider) GenerateWithSearch(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	return "", ErrProviderUnavailable
}
