package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// jsonCodec is a minimal grpc.Codec that marshals call payloads as JSON
// instead of the protobuf wire format. Registered once under the
// "json" content-subtype so grpcProvider can call a self-hosted model
// gateway without depending on protoc-generated stubs — this module's
// build process never invokes the Go toolchain, so .proto compilation
// is not an option here, and google.golang.org/protobuf itself has no
// runtime-reflection path for plain structs. The generate/destroy
// message vocabulary is grounded on the teacher's deprecated
// pkg/llm/client.go streaming client and pkg/agent/llm_client.go
// GenerateInput/Chunk types; this backend is the non-streaming analogue
// for a single bounded call.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// grpcGenerateRequest/Response mirror the field set of the teacher's
// agent.GenerateInput and its text/usage chunks, collapsed to a single
// request/response pair since this provider issues one bounded call per
// invocation rather than a streaming ReAct loop.
type grpcGenerateRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Model        string  `json:"model,omitempty"`
	Grounded     bool    `json:"grounded,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

type grpcGenerateResponse struct {
	Text          string `json:"text"`
	InputTokens   int    `json:"input_tokens"`
	OutputTokens  int    `json:"output_tokens"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorRetryable bool  `json:"error_retryable,omitempty"`
}

// grpcProvider calls a self-hosted/on-prem model gateway over gRPC. This
// is an optional backend alongside the HTTP vendor backends, for
// deployments running their own inference service rather than a public
// vendor API.
type grpcProvider struct {
	id   string
	addr string
	conn *grpc.ClientConn
}

func newGRPCProvider(id, addr string) (Provider, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrProviderUnavailable, addr, err)
	}
	return &grpcProvider{id: id, addr: addr, conn: conn}, nil
}

func (p *grpcProvider) Name() string { return p.id }

func (p *grpcProvider) Close() error {
	return p.conn.Close()
}

func (p *grpcProvider) Healthcheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req := &grpcGenerateRequest{Prompt: "ping"}
	resp := &grpcGenerateResponse{}
	if err := p.conn.Invoke(ctx, "/memocore.modelgateway.v1.ModelGateway/Healthcheck", req, resp, grpc.CallContentSubtype("json")); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}

func (p *grpcProvider) GenerateText(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	resp, err := p.generate(ctx, prompt, systemPrompt, cfg, false)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (p *grpcProvider) GenerateWithSearch(ctx context.Context, prompt, systemPrompt string, cfg CallConfig) (string, error) {
	resp, err := p.generate(ctx, prompt, systemPrompt, cfg, true)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (p *grpcProvider) GenerateJSON(ctx context.Context, prompt, systemPrompt, schemaHint string, cfg CallConfig) (map[string]any, error) {
	framed := prompt
	if schemaHint != "" {
		framed = fmt.Sprintf("%s\n\nRespond with a single JSON object matching this shape:\n%s", prompt, schemaHint)
	}
	resp, err := p.generate(ctx, framed, systemPrompt, cfg, false)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderInvalidResponse, err)
	}
	return out, nil
}

func (p *grpcProvider) generate(ctx context.Context, prompt, systemPrompt string, cfg CallConfig, grounded bool) (*grpcGenerateResponse, error) {
	req := &grpcGenerateRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Model:        cfg.Model,
		Grounded:     grounded,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxOutputTokens,
	}
	resp := &grpcGenerateResponse{}

	err := p.conn.Invoke(ctx, "/memocore.modelgateway.v1.ModelGateway/Generate", req, resp, grpc.CallContentSubtype("json"))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.ErrorMessage != "" {
		if resp.ErrorRetryable {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, resp.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderInvalidResponse, resp.ErrorMessage)
	}
	return resp, nil
}
