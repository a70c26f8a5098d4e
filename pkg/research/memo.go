package research

import (
	"fmt"
	"strings"

	"github.com/quantmemo/memocore/pkg/models"
)

// qaAnswer is one Phase B2 question/answer pair, always present even when
// the underlying agent call failed — Answer is simply empty in that case
// so Phase B3 can render a uniform list.
type qaAnswer struct {
	Question string
	Answer   string
	Success  bool
}

// buildFinalMemo assembles Phase B3's three-section executive memo
// (Snapshot / Deep Analysis / Action Plan) from the Phase A synthesis, the
// Phase A+ alternative-strategy proposals, and the Phase B2 Q&A answers,
// prefixed with a Confidence Adjustment block when confidenceNotes is
// non-empty. This is plain assembly, not a further provider call: every
// section's prose already comes from an agent result produced earlier in
// the run.
func buildFinalMemo(synthesis, altStrategies models.AgentResult, qa []qaAnswer, confidenceNotes []string) string {
	var b strings.Builder

	b.WriteString(ConfidenceHeader(confidenceNotes))

	b.WriteString("# Deep Research Memo\n\n")

	b.WriteString("## Snapshot\n\n")
	if verdict, ok := synthesis.Data["verdict"].(string); ok && verdict != "" {
		fmt.Fprintf(&b, "%s\n\n", verdict)
	} else if synthesis.AnalysisText != "" {
		fmt.Fprintf(&b, "%s\n\n", synthesis.AnalysisText)
	} else {
		b.WriteString("No synthesized verdict is available for this run.\n\n")
	}
	if insights, ok := synthesis.Data["key_insights"].([]any); ok {
		for _, insight := range insights {
			fmt.Fprintf(&b, "- %v\n", insight)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Deep Analysis\n\n")
	if memo, ok := synthesis.Data["memo_markdown"].(string); ok && memo != "" {
		fmt.Fprintf(&b, "%s\n\n", memo)
	}
	if len(qa) > 0 {
		b.WriteString("### Research Findings\n\n")
		for _, a := range qa {
			fmt.Fprintf(&b, "**Q: %s**\n\n", a.Question)
			if a.Success && a.Answer != "" {
				fmt.Fprintf(&b, "%s\n\n", a.Answer)
			} else {
				b.WriteString("No answer could be obtained for this question within the run's time budget.\n\n")
			}
		}
	}

	b.WriteString("## Action Plan\n\n")
	if rec, ok := synthesis.Data["final_recommendation"].(string); ok && rec != "" {
		fmt.Fprintf(&b, "%s\n\n", rec)
	}
	if alts, ok := altStrategies.Data["alternatives"].([]any); ok && len(alts) > 0 {
		b.WriteString("### Alternative Strategies Considered\n\n")
		for _, alt := range alts {
			if m, ok := alt.(map[string]any); ok {
				name, _ := m["name"].(string)
				rationale, _ := m["rationale"].(string)
				tradeoffs, _ := m["tradeoffs"].(string)
				fmt.Fprintf(&b, "- **%s** — %s (%s)\n", name, rationale, tradeoffs)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}
