package models

// AgentInput is constructed fresh for every agent invocation. PreviousResults
// is read-only from the agent's perspective — the executor owns the map and
// never lets an agent mutate another agent's entry.
type AgentInput struct {
	StrategySummary StrategySummary          `json:"strategy_summary"`
	MarketContext   map[string]any           `json:"market_context,omitempty"`
	PreviousResults map[string]AgentResult   `json:"previous_results"`
}

// AgentResult is produced exactly once per agent per run. Data is always a
// non-nil map — {} on failure — so downstream consumers can key into it
// without a nil check.
type AgentResult struct {
	AgentID      string         `json:"agent_id"`
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data"`
	AnalysisText string         `json:"analysis_text,omitempty"`
	Score        *float64       `json:"score,omitempty"`
	Error        string         `json:"error,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	ModelUsed    string         `json:"model_used,omitempty"`
}

// FailedResult builds the canonical shape for a failed agent run: Data is
// always {}, never nil, per the AgentResult invariant.
func FailedResult(agentID, errMsg string) AgentResult {
	return AgentResult{
		AgentID: agentID,
		Success: false,
		Data:    map[string]any{},
		Error:   errMsg,
	}
}

// EmptyPreviousResults returns a new, empty, non-nil previous_results map
// for a run in which no earlier agent has produced a result yet.
func EmptyPreviousResults() map[string]AgentResult {
	return make(map[string]AgentResult)
}
