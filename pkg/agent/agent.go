// Package agent implements the bounded LLM prompt/response unit: an Agent
// declares the inputs it reads, formats a prompt from them, calls a
// Provider once, and returns a scored AgentResult that never carries a Go
// error past its own boundary. Grounded on the teacher's
// pkg/agent/base_agent.go Controller delegation and
// pkg/agent/controller/single_call.go single-shot execution, collapsed
// from a ReAct tool-calling loop to the bounded single-call contract this
// core requires.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quantmemo/memocore/pkg/jsonutil"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
)

// defaultTokenBudgetBytes is the fallback trimming budget when a caller
// leaves CallConfig.TokenBudgetBytes unset, matching spec.md's stated
// default.
const defaultTokenBudgetBytes = 80_000

// ScoreFunc computes a deterministic scalar score from an agent's parsed
// result data, given the AgentInput the call ran with (so a score can be
// normalized against the strategy's own Greeks/metrics, or composed from
// earlier agents' own deterministic scores, rather than trusting whatever
// number the model self-reported). Returning false means no score applies
// to this agent.
type ScoreFunc func(input models.AgentInput, data map[string]any) (float64, bool)

// Agent is a single typed unit of work: a stable id, the AgentInput keys it
// reads, a prompt template, and an optional JSON result schema hint.
//
// RequiredInputs names keys read from AgentInput.MarketContext (the
// sentinel "market_context" means "the market context map must be
// present and non-empty", individual keys like "research_question" mean
// a single synthetic value injected for this call). RequiresPrior names
// the ids of earlier agents in the chain whose AgentResult this agent
// reads from AgentInput.PreviousResults — kept separate from
// RequiredInputs because the two live in different AgentInput fields and
// are validated/formatted differently.
type Agent struct {
	ID             string
	RequiredInputs []string
	RequiresPrior  []string
	SystemPrompt   string
	PromptTemplate string
	ResultSchema   string // empty means call GenerateText instead of GenerateJSON
	UseSearch      bool   // call GenerateWithSearch instead of GenerateText (ignored when ResultSchema is set)
	Score          ScoreFunc
}

// Execute runs the five-step contract: validate inputs, build the prompt
// filtered to declared dependencies, call the provider, and never let a
// provider error propagate as a Go error — it becomes a failed AgentResult
// instead, mirroring base_agent.go's conversion of controller errors into
// a status-carrying result.
func (a *Agent) Execute(ctx context.Context, provider llm.Provider, input models.AgentInput, cfg llm.CallConfig) models.AgentResult {
	start := time.Now()

	if missing := a.missingInputs(input); len(missing) > 0 {
		return models.FailedResult(a.ID, fmt.Sprintf("missing:%s", strings.Join(missing, ",")))
	}

	prompt := a.buildPrompt(input, cfg.TokenBudgetBytes)

	var data map[string]any
	var analysisText string
	var err error

	switch {
	case a.ResultSchema != "":
		data, err = provider.GenerateJSON(ctx, prompt, a.SystemPrompt, a.ResultSchema, cfg)
		if err == nil {
			analysisText, _ = data["analysis_text"].(string)
		}
	case a.UseSearch:
		analysisText, err = provider.GenerateWithSearch(ctx, prompt, a.SystemPrompt, cfg)
		data = map[string]any{"analysis_text": analysisText}
	default:
		analysisText, err = provider.GenerateText(ctx, prompt, a.SystemPrompt, cfg)
		data = map[string]any{"analysis_text": analysisText}
	}

	if err != nil {
		result := models.FailedResult(a.ID, err.Error())
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	if data == nil {
		data = map[string]any{}
	}

	result := models.AgentResult{
		AgentID:      a.ID,
		Success:      true,
		Data:         data,
		AnalysisText: analysisText,
		DurationMs:   time.Since(start).Milliseconds(),
		ModelUsed:    cfg.Model,
	}

	if a.Score != nil {
		if score, ok := a.Score(input, data); ok {
			result.Score = &score
		}
	}

	return result
}

// missingInputs reports which declared dependencies are absent: a
// "market_context" requirement needs a non-empty MarketContext map, any
// other RequiredInputs key needs a present, non-nil entry within it, and
// every RequiresPrior id needs a present entry in PreviousResults (present
// but Success=false still counts as "satisfied" — the agent simply won't
// have that finding to build on, matching the executor's rule that a
// failed upstream agent leaves a {} entry rather than an absent one).
// "strategy_summary" is always satisfied since it's mandatory on AgentInput.
func (a *Agent) missingInputs(input models.AgentInput) []string {
	var missing []string
	for _, key := range a.RequiredInputs {
		switch key {
		case "strategy_summary":
			continue
		case "market_context":
			if len(input.MarketContext) == 0 {
				missing = append(missing, key)
			}
		default:
			if v, ok := input.MarketContext[key]; !ok || v == nil {
				missing = append(missing, key)
			}
		}
	}
	for _, id := range a.RequiresPrior {
		if _, ok := input.PreviousResults[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// buildPrompt formats a.PromptTemplate with the strategy summary, the
// subset of MarketContext this agent declared it reads, and the subset of
// PreviousResults (RequiresPrior) it declared it reads — never the full
// result set, to keep prompts small and deterministic per spec.
//
// The market-context block (which carries the bulky structured collaborator
// data — option-chain excerpts, fundamentals snapshots) is run through
// jsonutil.TrimToBudget before being serialized, so the prompt never grows
// past tokenBudgetBytes regardless of how much upstream data was attached.
func (a *Agent) buildPrompt(input models.AgentInput, tokenBudgetBytes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nStrategy summary:\n%s\n", a.PromptTemplate, formatStrategySummary(input.StrategySummary))

	for _, key := range a.RequiredInputs {
		switch key {
		case "strategy_summary", "market_context":
			continue
		default:
			if v, ok := input.MarketContext[key]; ok {
				fmt.Fprintf(&b, "\n%s:\n%v\n", key, v)
			}
		}
	}
	if contains(a.RequiredInputs, "market_context") && len(input.MarketContext) > 0 {
		writeTrimmedMarketContext(&b, input, tokenBudgetBytes)
	}

	if len(a.RequiresPrior) > 0 {
		b.WriteString("\nPrior agent findings:\n")
		for _, id := range a.RequiresPrior {
			res, ok := input.PreviousResults[id]
			if !ok || !res.Success {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s\n", id, res.AnalysisText)
		}
	}

	return b.String()
}

// writeTrimmedMarketContext merges MarketContext with the strategy
// summary's own structured collaborator data, trims the result to
// budgetBytes (defaulting to defaultTokenBudgetBytes when the caller left
// it unset) via jsonutil.TrimToBudget, and writes it to b as JSON so the
// dropped-leaf behavior is visible and deterministic rather than the
// earlier untrimmed %v dump.
func writeTrimmedMarketContext(b *strings.Builder, input models.AgentInput, budgetBytes int) {
	merged := make(map[string]any, len(input.MarketContext)+2)
	for k, v := range input.MarketContext {
		merged[k] = v
	}
	if len(input.StrategySummary.OptionChainContext) > 0 {
		merged["option_chain_context"] = input.StrategySummary.OptionChainContext
	}
	if len(input.StrategySummary.FundamentalSnapshot) > 0 {
		merged["fundamental_snapshot"] = input.StrategySummary.FundamentalSnapshot
	}

	budget := budgetBytes
	if budget <= 0 {
		budget = defaultTokenBudgetBytes
	}
	trimmed, err := jsonutil.TrimToBudget(merged, budget)
	if err != nil {
		trimmed = map[string]any{}
	}
	encoded, err := json.Marshal(trimmed)
	if err != nil {
		encoded = []byte("{}")
	}
	fmt.Fprintf(b, "\nMarket context (trimmed to %d bytes):\n%s\n", budget, encoded)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func formatStrategySummary(s models.StrategySummary) string {
	return fmt.Sprintf(
		"symbol=%s strategy_name=%s underlying_price=%.2f legs=%d max_profit=%.2f max_loss=%.2f pop=%.1f",
		s.Symbol, s.StrategyName, s.UnderlyingPrice, len(s.Legs),
		s.StrategyMetrics.MaxProfit, s.StrategyMetrics.MaxLoss, s.StrategyMetrics.POP,
	)
}
