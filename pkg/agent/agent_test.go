package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	jsonOut map[string]any
	jsonErr error
	textOut string
	textErr error
}

func (s *stubProvider) Name() string                                   { return "stub" }
func (s *stubProvider) Healthcheck(ctx context.Context) error          { return nil }
func (s *stubProvider) GenerateText(ctx context.Context, prompt, sys string, cfg llm.CallConfig) (string, error) {
	return s.textOut, s.textErr
}
func (s *stubProvider) GenerateWithSearch(ctx context.Context, prompt, sys string, cfg llm.CallConfig) (string, error) {
	return s.textOut, s.textErr
}
func (s *stubProvider) GenerateJSON(ctx context.Context, prompt, sys, schema string, cfg llm.CallConfig) (map[string]any, error) {
	return s.jsonOut, s.jsonErr
}

func baseInput() models.AgentInput {
	return models.AgentInput{
		StrategySummary: models.StrategySummary{Symbol: "AAPL", UnderlyingPrice: 150},
		MarketContext:   map[string]any{},
		PreviousResults: models.EmptyPreviousResults(),
	}
}

func TestAgent_Execute_MissingRequiredInputFailsWithoutCallingProvider(t *testing.T) {
	a := &Agent{
		ID:             "needs_market_context",
		RequiredInputs: []string{"strategy_summary", "market_context"},
	}
	calledProvider := false
	result := a.Execute(context.Background(), &countingProvider{inner: &stubProvider{textOut: "x"}, called: &calledProvider}, baseInput(), llm.CallConfig{})

	require.False(t, result.Success)
	assert.Equal(t, "missing:market_context", result.Error)
	assert.Empty(t, result.Data)
	assert.False(t, calledProvider, "provider must not be called when required inputs are missing")
}

type countingProvider struct {
	inner   llm.Provider
	called  *bool
}

func (c *countingProvider) Name() string                          { return c.inner.Name() }
func (c *countingProvider) Healthcheck(ctx context.Context) error  { return c.inner.Healthcheck(ctx) }
func (c *countingProvider) GenerateText(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	*c.called = true
	return c.inner.GenerateText(ctx, p, s, cfg)
}
func (c *countingProvider) GenerateWithSearch(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	*c.called = true
	return c.inner.GenerateWithSearch(ctx, p, s, cfg)
}
func (c *countingProvider) GenerateJSON(ctx context.Context, p, s, schema string, cfg llm.CallConfig) (map[string]any, error) {
	*c.called = true
	return c.inner.GenerateJSON(ctx, p, s, schema, cfg)
}

func TestAgent_Execute_ProviderErrorNeverPropagatesAsGoError(t *testing.T) {
	a := &Agent{
		ID:             "greeks",
		RequiredInputs: []string{"strategy_summary"},
		ResultSchema:   `{"risk_score": number}`,
	}
	p := &stubProvider{jsonErr: errors.New("boom")}

	result := a.Execute(context.Background(), p, baseInput(), llm.CallConfig{})

	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
}

func TestAgent_Execute_SuccessAttachesScoreAndModel(t *testing.T) {
	a := optionsGreeksAnalyst()
	// The model's self-reported risk_score is discarded: the attached Score
	// is recomputed deterministically from the strategy's own Greeks and
	// metrics, normalized per 100 underlying notional.
	p := &stubProvider{jsonOut: map[string]any{"risk_score": 999.0, "analysis_text": "elevated theta"}}

	input := baseInput()
	input.StrategySummary.PortfolioGreeks = models.PortfolioGreeks{Delta: 20, Vega: 15, Theta: 25}
	input.StrategySummary.StrategyMetrics = models.StrategyMetrics{MaxProfit: 250}

	result := a.Execute(context.Background(), p, input, llm.CallConfig{Model: "test-model"})

	require.True(t, result.Success)
	require.NotNil(t, result.Score)
	assert.InDelta(t, 0.38333333, *result.Score, 1e-6)
	assert.Equal(t, "test-model", result.ModelUsed)
	assert.Equal(t, "elevated theta", result.AnalysisText)
	assert.InDelta(t, 0.13333333, result.Data["per_100_delta"], 1e-6)
	assert.InDelta(t, 0.1, result.Data["per_100_vega"], 1e-6)
	assert.InDelta(t, 0.1, result.Data["theta_to_max_profit_ratio"], 1e-6)
}

func TestOptionsGreeksAnalyst_Score_MissingNotionalLeavesDeltaVegaUnavailable(t *testing.T) {
	a := optionsGreeksAnalyst()
	p := &stubProvider{jsonOut: map[string]any{"analysis_text": "no underlying price on record"}}

	input := baseInput()
	input.StrategySummary.UnderlyingPrice = 0 // NotionalPer100Shares() is unavailable
	input.StrategySummary.PortfolioGreeks = models.PortfolioGreeks{Delta: 20, Vega: 15, Theta: 25}
	input.StrategySummary.StrategyMetrics = models.StrategyMetrics{MaxProfit: 250}

	result := a.Execute(context.Background(), p, input, llm.CallConfig{})

	require.True(t, result.Success)
	require.NotNil(t, result.Score)
	assert.InDelta(t, 0.3, *result.Score, 1e-9) // only the theta term contributes
	_, hasDelta := result.Data["per_100_delta"]
	assert.False(t, hasDelta)
}

func TestAgent_Execute_RequiresPriorMissingFails(t *testing.T) {
	a := riskScenarioAnalyst()
	input := baseInput()

	result := a.Execute(context.Background(), &stubProvider{}, input, llm.CallConfig{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "options_greeks_analyst")
}

func TestAgent_Execute_RequiresPriorSatisfiedByFailedUpstream(t *testing.T) {
	a := riskScenarioAnalyst()
	input := baseInput()
	input.PreviousResults["options_greeks_analyst"] = models.FailedResult("options_greeks_analyst", "boom")
	input.PreviousResults["iv_environment_analyst"] = models.FailedResult("iv_environment_analyst", "boom")
	input.PreviousResults["market_context_analyst"] = models.FailedResult("market_context_analyst", "boom")

	p := &stubProvider{jsonOut: map[string]any{"risk_score": 3.0}}
	result := a.Execute(context.Background(), p, input, llm.CallConfig{})
	assert.True(t, result.Success, "a present-but-failed upstream entry satisfies the dependency")
}

func TestOptionsSynthesisAgent_ScoreClampsTo0_10(t *testing.T) {
	a := optionsSynthesisAgent()
	p := &stubProvider{jsonOut: map[string]any{"overall_score": 15.0}}
	input := baseInput()
	for _, id := range a.RequiresPrior {
		input.PreviousResults[id] = models.AgentResult{AgentID: id, Success: true, Data: map[string]any{}}
	}

	result := a.Execute(context.Background(), p, input, llm.CallConfig{})
	require.True(t, result.Success)
	require.NotNil(t, result.Score)
	assert.Equal(t, 10.0, *result.Score)
}
