package agent

import "github.com/quantmemo/memocore/pkg/models"

// Panel returns the core options-analysis agent panel, keyed by id. Each
// entry's fields match spec.md's table verbatim; scoring functions apply
// the defensive parsing and per-100-notional normalization rules from
// spec.md §4.3.
func Panel() map[string]*Agent {
	agents := []*Agent{
		optionsGreeksAnalyst(),
		ivEnvironmentAnalyst(),
		marketContextAnalyst(),
		riskScenarioAnalyst(),
		optionsSynthesisAgent(),
		altStrategyAgent(),
		researchQuestionAgent(),
		questionAnswerAgent(),
	}
	out := make(map[string]*Agent, len(agents))
	for _, a := range agents {
		out[a.ID] = a
	}
	return out
}

func optionsGreeksAnalyst() *Agent {
	a := &Agent{
		ID:             "options_greeks_analyst",
		RequiredInputs: []string{"strategy_summary"},
		SystemPrompt:   "You are an options risk analyst. Assess the portfolio Greeks of a multi-leg options strategy.",
		PromptTemplate: "Evaluate the risk profile of this strategy based on its net Greeks, normalized per 100 shares of underlying notional.",
		ResultSchema:   `{"risk_score": number, "risk_category": "low|med|high|very_high", "per_100_delta": number, "per_100_vega": number, "theta_to_max_profit_ratio": number, "analysis_text": string}`,
	}
	a.Score = func(input models.AgentInput, data map[string]any) (float64, bool) {
		return applyGreeksNormalization(input.StrategySummary, data), true
	}
	return a
}

func ivEnvironmentAnalyst() *Agent {
	a := &Agent{
		ID:             "iv_environment_analyst",
		RequiredInputs: []string{"strategy_summary", "market_context"},
		SystemPrompt:   "You are a volatility analyst. Assess whether implied volatility favors this strategy's structure.",
		PromptTemplate: "Evaluate the implied-volatility environment for this strategy: is IV cheap, fair, or expensive relative to its own history, and what is the crush risk around the nearest catalyst?",
		ResultSchema:   `{"iv_rank": number, "iv_percentile": number, "environment": "cheap|fair|expensive", "crush_risk_score": number, "analysis_text": string}`,
	}
	a.Score = func(input models.AgentInput, data map[string]any) (float64, bool) {
		return safeFloat(data, "iv_rank")
	}
	return a
}

func marketContextAnalyst() *Agent {
	a := &Agent{
		ID:             "market_context_analyst",
		RequiredInputs: []string{"strategy_summary", "market_context"},
		SystemPrompt:   "You are a fundamentals and technicals analyst assessing alignment with a proposed options strategy's directional thesis.",
		PromptTemplate: "Evaluate whether the underlying's fundamentals, technicals, and sentiment support this strategy's directional thesis.",
		ResultSchema:   `{"fundamental_score": number, "technical_score": number, "sentiment": string, "alignment_score": number, "analysis_text": string}`,
	}
	a.Score = func(input models.AgentInput, data map[string]any) (float64, bool) {
		return compositeAlignmentScore(data)
	}
	return a
}

func riskScenarioAnalyst() *Agent {
	a := &Agent{
		ID:             "risk_scenario_analyst",
		RequiredInputs: []string{"strategy_summary"},
		RequiresPrior:  []string{"options_greeks_analyst", "iv_environment_analyst", "market_context_analyst"},
		SystemPrompt:   "You are a risk-scenario analyst. Stress-test a strategy's P&L against adverse moves in price and implied volatility.",
		PromptTemplate: "Using the prior Greeks, IV, and market-context findings, stress-test this strategy against plausible adverse scenarios and recommend mitigations.",
		ResultSchema:   `{"risk_score": number, "stressed_pnl": [{"scenario": string, "pnl": number}], "tail_risk": number, "mitigations": [string], "analysis_text": string}`,
	}
	a.Score = func(input models.AgentInput, data map[string]any) (float64, bool) {
		return safeFloat(data, "risk_score")
	}
	return a
}

func optionsSynthesisAgent() *Agent {
	a := &Agent{
		ID:             "options_synthesis_agent",
		RequiredInputs: []string{"strategy_summary"},
		RequiresPrior:  []string{"options_greeks_analyst", "iv_environment_analyst", "market_context_analyst", "risk_scenario_analyst"},
		SystemPrompt:   "You are the senior strategist synthesizing a panel of specialist findings into one institutional-grade memo.",
		PromptTemplate: "Synthesize the prior panel findings into a final verdict, key insights, and a markdown research memo.",
		ResultSchema:   `{"overall_score": number, "verdict": string, "key_insights": [string], "final_recommendation": string, "memo_markdown": string}`,
	}
	a.Score = func(input models.AgentInput, data map[string]any) (float64, bool) {
		if score, ok := compositeOverallScore(input.PreviousResults); ok {
			data["overall_score"] = score
			return score, true
		}
		// No prior agent carried a usable Score (e.g. this agent called in
		// isolation, outside a full panel run) — fall back to whatever the
		// model itself reported.
		score, ok := safeFloat(data, "overall_score")
		if !ok {
			return 0, false
		}
		return clamp(score, 0, 10), true
	}
	return a
}

// altStrategyAgent proposes one or two alternative structures the user
// might consider instead of the submitted strategy. Recovered from
// original_source/ (the spec.md distillation dropped alternative-strategy
// suggestion, but the deep-research Phase A+ step requires it).
func altStrategyAgent() *Agent {
	return &Agent{
		ID:             "alt_strategy_agent",
		RequiredInputs: []string{"strategy_summary", "market_context"},
		SystemPrompt:   "You are an options strategist proposing alternative structures with a better risk/reward trade-off than the submitted strategy.",
		PromptTemplate: "Propose one or two alternative option strategies on the same underlying that could achieve a similar thesis with a better risk/reward trade-off. Be concrete about strikes and expiries.",
		ResultSchema:   `{"alternatives": [{"name": string, "rationale": string, "tradeoffs": string}], "analysis_text": string}`,
	}
}

// researchQuestionAgent plans the set of sub-questions a deep-research run
// investigates in Phase B1. Recovered from original_source/.
func researchQuestionAgent() *Agent {
	return &Agent{
		ID:             "research_question_agent",
		RequiredInputs: []string{"strategy_summary", "market_context"},
		SystemPrompt:   "You are a research planner. Decompose an open-ended options-strategy research request into a short list of concrete, independently answerable sub-questions.",
		PromptTemplate: "Given this strategy and context, list the 1-5 most decision-relevant sub-questions a deep research pass should answer.",
		ResultSchema:   `{"questions": [string]}`,
	}
}

// questionAnswerAgent answers a single research sub-question, grounded
// with a live web search when the backend supports it (Phase B2).
func questionAnswerAgent() *Agent {
	return &Agent{
		ID:             "question_answer_agent",
		RequiredInputs: []string{"strategy_summary", "market_context", "research_question"},
		SystemPrompt:   "You are a research analyst answering one specific, narrow question relevant to an options strategy, citing sources where available.",
		PromptTemplate: "Answer the assigned research question as specifically and concisely as the available evidence allows.",
		UseSearch:      true,
	}
}
