package research

import "strings"

// agentConfidenceNotes maps a panel agent id to the human-readable note
// ConfidenceHeader prepends to the final memo when that agent's result was
// unsuccessful — spec.md §8 scenario 4 names the iv_environment_analyst
// case verbatim ("IV environment unavailable").
var agentConfidenceNotes = map[string]string{
	"options_greeks_analyst":  "Portfolio Greeks assessment unavailable",
	"iv_environment_analyst":  "IV environment unavailable",
	"market_context_analyst":  "Market context assessment unavailable",
	"risk_scenario_analyst":   "Risk scenario stress-test unavailable",
	"options_synthesis_agent": "Synthesis unavailable",
	"alt_strategy_agent":      "Alternative strategy proposals unavailable",
	"research_question_agent": "Research planning unavailable",
}

// ConfidenceHeader renders the Confidence Adjustment block spec.md §4.7's
// "safe fallbacks" rule requires whenever external collaborator data or a
// panel agent result was missing or partial. It is prepended to the final
// memo, never appended, and names each missing input explicitly.
func ConfidenceHeader(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Confidence Adjustment\n\n")
	b.WriteString("This memo was generated with incomplete inputs; weigh its conclusions accordingly:\n\n")
	for _, n := range notes {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
