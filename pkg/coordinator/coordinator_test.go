package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
)

type fakeProvider struct {
	jsonOut      map[string]any
	textOverride string
	onCall       func()
}

func (f *fakeProvider) Name() string                          { return "fake" }
func (f *fakeProvider) Healthcheck(ctx context.Context) error  { return nil }
func (f *fakeProvider) GenerateText(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	if f.textOverride != "" {
		return f.textOverride, nil
	}
	return "a sufficiently long synthetic response that clears the minimum response length threshold for testing purposes here.", nil
}
func (f *fakeProvider) GenerateWithSearch(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	return f.GenerateText(ctx, p, s, cfg)
}
func (f *fakeProvider) GenerateJSON(ctx context.Context, p, s, schema string, cfg llm.CallConfig) (map[string]any, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.jsonOut, nil
}

func testInput() models.AgentInput {
	return models.AgentInput{
		StrategySummary: models.StrategySummary{Symbol: "AAPL", UnderlyingPrice: 150},
		MarketContext:   map[string]any{"sector": "technology"},
	}
}

func TestCoordinator_Run_OptionsAnalysisWorkflow_EmitsFixedCheckpoints(t *testing.T) {
	provider := &fakeProvider{jsonOut: map[string]any{
		"risk_score": 5.0, "iv_rank": 40.0, "alignment_score": 6.0, "overall_score": 7.0,
		"analysis_text": "fine", "memo_markdown": "# Memo\n\nBody text.",
	}}
	c := New(agent.Panel(), provider, llm.CallConfig{Model: "test-model"})

	var percentages []int
	progress := func(percent int, message string) {
		percentages = append(percentages, percent)
	}

	result, err := c.Run(context.Background(), OptionsAnalysisWorkflow(), testInput(), progress)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 40, 70, 100}, percentages)
	assert.Equal(t, "synthesis", result.FinalPhase)

	require.Len(t, result.Results, 5)
	synthesis, ok := result.Results["options_synthesis_agent"]
	require.True(t, ok)
	assert.True(t, synthesis.Success)
}

func TestCoordinator_Run_PanickingProgressCallbackNeverBreaksWorkflow(t *testing.T) {
	provider := &fakeProvider{jsonOut: map[string]any{"risk_score": 5.0, "overall_score": 5.0}}
	c := New(agent.Panel(), provider, llm.CallConfig{})

	progress := func(percent int, message string) {
		panic("telemetry exploded")
	}

	result, err := c.Run(context.Background(), OptionsAnalysisWorkflow(), testInput(), progress)
	require.NoError(t, err)
	assert.Equal(t, "synthesis", result.FinalPhase)
}

func TestCoordinator_Run_UnknownAgentIDFails(t *testing.T) {
	c := New(agent.Panel(), &fakeProvider{}, llm.CallConfig{})
	workflow := models.Workflow{
		Name: "broken",
		Phases: []models.Phase{
			{Name: "p1", Kind: models.PhaseKindParallel, Agents: []string{"does_not_exist"}},
		},
	}

	_, err := c.Run(context.Background(), workflow, testInput(), nil)
	assert.Error(t, err)
}
