package coordinator

import "github.com/quantmemo/memocore/pkg/models"

// OptionsAnalysisWorkflow is the canonical multi-agent workflow spec.md
// §4.5 defines: a 3-phase panel of Greeks/IV/market-context analysts run in
// parallel, a risk-scenario analyst that reads their output, then a
// synthesis agent that reads everything.
func OptionsAnalysisWorkflow() models.Workflow {
	return models.Workflow{
		Name: "options_analysis",
		Phases: []models.Phase{
			{
				Name: "panel",
				Kind: models.PhaseKindParallel,
				Agents: []string{
					"options_greeks_analyst",
					"iv_environment_analyst",
					"market_context_analyst",
				},
			},
			{
				Name:   "risk_scenario",
				Kind:   models.PhaseKindSequential,
				Agents: []string{"risk_scenario_analyst"},
			},
			{
				Name:   "synthesis",
				Kind:   models.PhaseKindSequential,
				Agents: []string{"options_synthesis_agent"},
			},
		},
	}
}
