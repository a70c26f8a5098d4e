package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/quantmemo/memocore/pkg/jsonutil"
)

// httpProvider calls a vendor's text-generation HTTP endpoint directly.
// No official Go SDK for Gemini, OpenAI, or Anthropic exists anywhere in
// the retrieved corpus (confirmed by inventory), so each vendor is adapted
// over its plain HTTP API rather than depending on a fabricated or
// nonexistent SDK package. net/http is used for the transport itself since
// no HTTP client library (e.g. go-resty) appears anywhere in the corpus
// either — stdlib is the only grounded choice here.
type httpProvider struct {
	id         string
	baseURL    string
	apiKeyEnv  string
	httpClient *http.Client
}

func newHTTPProvider(id, baseURL, apiKeyEnv string) Provider {
	return &httpProvider{
		id:        id,
		baseURL:   baseURL,
		apiKeyEnv: apiKeyEnv,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

func (p *httpProvider) Name() string { return p.id }

func (p *httpProvider) apiKey() string {
	return os.Getenv(p.apiKeyEnv)
}

func (p *httpProvider) Healthcheck(ctx context.Context) error {
	if p.apiKey() == "" {
		return ErrProviderUnavailable
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	return nil
}

func (p *httpProvider) GenerateText(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	body, err := p.invoke(ctx, prompt, systemPrompt, cfg, false)
	if err != nil {
		return "", err
	}
	return body.Text, nil
}

func (p *httpProvider) GenerateWithSearch(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	body, err := p.invoke(ctx, prompt, systemPrompt, cfg, true)
	if err != nil {
		return "", err
	}
	return body.Text, nil
}

func (p *httpProvider) GenerateJSON(ctx context.Context, prompt, systemPrompt, schemaHint string, cfg CallConfig) (map[string]any, error) {
	framed := prompt
	if schemaHint != "" {
		framed = fmt.Sprintf("%s\n\nRespond with a single JSON object matching this shape:\n%s", prompt, schemaHint)
	}

	body, err := p.invoke(ctx, framed, systemPrompt, cfg, false)
	if err != nil {
		return nil, err
	}

	cleaned := jsonutil.StripCodeFence(body.Text)
	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInvalidResponse, err)
	}
	return out, nil
}

// chatRequest and chatResponse are a deliberately vendor-neutral wire shape.
// Each real vendor (Gemini/OpenAI/Anthropic) has its own request/response
// envelope; a production build would carry one translation layer per
// vendor underneath this method. That per-vendor payload translation is
// out of scope here — the resilience and error-taxonomy plumbing around
// it is this package's concern.
type chatRequest struct {
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model,omitempty"`
	Grounded     bool    `json:"grounded,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Text string `json:"text"`
}

func (p *httpProvider) invoke(ctx context.Context, prompt, systemPrompt string, cfg CallConfig, grounded bool) (*chatResponse, error) {
	key := p.apiKey()
	if key == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrProviderUnavailable, p.apiKeyEnv)
	}

	reqBody := chatRequest{
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Model:        cfg.Model,
		Grounded:     grounded,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxOutputTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInvalidResponse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrProviderRateLimited
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrProviderInvalidResponse, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInvalidResponse, err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInvalidResponse, err)
	}
	return &out, nil
}
