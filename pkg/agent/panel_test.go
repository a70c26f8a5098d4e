package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanel_ContainsCorePanelAndSupplementedAgents(t *testing.T) {
	panel := Panel()

	for _, id := range []string{
		"options_greeks_analyst",
		"iv_environment_analyst",
		"market_context_analyst",
		"risk_scenario_analyst",
		"options_synthesis_agent",
		"alt_strategy_agent",
		"research_question_agent",
		"question_answer_agent",
	} {
		a, ok := panel[id]
		require.True(t, ok, "panel missing agent %q", id)
		assert.Equal(t, id, a.ID)
	}
}

func TestQuestionAnswerAgent_UsesSearch(t *testing.T) {
	a := Panel()["question_answer_agent"]
	assert.True(t, a.UseSearch)
	assert.Empty(t, a.ResultSchema)
}
