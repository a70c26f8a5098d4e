package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/quota"
)

// ReportMode selects between a single bounded LLM call and the full
// multi-agent panel for GenerateReport's synchronous flow (spec.md §6's
// generate_report(strategy_summary, mode) output).
type ReportMode string

const (
	ReportModeSingle ReportMode = "single-agent"
	ReportModeMulti  ReportMode = "multi-agent"
)

// ReportOutput is generate_report's result shape:
// { report_markdown, metadata: { mode, quota_used, agents_used[], duration_ms } }.
type ReportOutput struct {
	ReportMarkdown string
	Metadata       map[string]any
}

// GenerateReport renders a synchronous report for an already-reserved
// quota.Reservation: reservation.Mode selects single-agent vs multi-agent
// execution. Callers make the reservation (and, on InsufficientCredits,
// the downgrade retry) through a quota.Gate before calling GenerateReport —
// see quota.Gate.Downgrade, whose DowngradeReason is copied into the output
// metadata automatically when present.
func (c *Coordinator) GenerateReport(ctx context.Context, reservation quota.Reservation, summary models.StrategySummary, progress ProgressCallback) (ReportOutput, error) {
	start := time.Now()
	// The market-context agents need a non-empty map to run; with no
	// collaborator data here, use the same placeholder the deep-research
	// enrichment falls back to.
	input := models.AgentInput{StrategySummary: summary, MarketContext: map[string]any{"sector": "unknown"}}

	var (
		markdown   string
		agentsUsed []string
		mode       ReportMode
	)

	switch reservation.Mode {
	case quota.ModeSingleAgent:
		mode = ReportModeSingle
		emit(progress, 10, "report started")
		a := singleAgentReportAgent()
		result := a.Execute(ctx, c.provider, input, c.cfg)
		if !result.Success {
			emit(progress, 100, "report failed")
			return ReportOutput{}, fmt.Errorf("coordinator: single-agent report: %s", result.Error)
		}
		markdown = result.AnalysisText
		agentsUsed = []string{a.ID}
		emit(progress, 100, "report complete")

	case quota.ModeMultiAgent:
		mode = ReportModeMulti
		result, err := c.Run(ctx, OptionsAnalysisWorkflow(), input, progress)
		if err != nil {
			return ReportOutput{}, err
		}
		synthesis := result.Results["options_synthesis_agent"]
		markdown, _ = synthesis.Data["memo_markdown"].(string)
		agentsUsed = []string{
			"options_greeks_analyst", "iv_environment_analyst", "market_context_analyst",
			"risk_scenario_analyst", "options_synthesis_agent",
		}

	default:
		return ReportOutput{}, fmt.Errorf("coordinator: generate report: unsupported reservation mode %q", reservation.Mode)
	}

	metadata := map[string]any{
		"mode":        string(mode),
		"quota_used":  reservation.Cost,
		"agents_used": agentsUsed,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if reservation.DowngradeReason != "" {
		metadata["downgrade_reason"] = reservation.DowngradeReason
	}

	return ReportOutput{ReportMarkdown: markdown, Metadata: metadata}, nil
}

// singleAgentReportAgent is the single bounded generate_text call
// spec.md §8 scenario 1 describes — not part of agent.Panel() since it
// runs alone rather than inside a Workflow phase.
func singleAgentReportAgent() *agent.Agent {
	return &agent.Agent{
		ID:             "single_agent_report",
		RequiredInputs: []string{"strategy_summary"},
		SystemPrompt:   "You are a senior options strategist producing a complete institutional-grade research memo in a single pass.",
		PromptTemplate: "Produce a complete markdown research memo for this strategy: summarize the position, assess its risk profile and implied-volatility context, evaluate market alignment, and close with a final recommendation.",
	}
}
