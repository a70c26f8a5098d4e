// Package coordinator drives a models.Workflow phase by phase: parallel
// phases fan out through executor.RunParallel, sequential phases thread
// results forward through executor.RunSequential, and a progress callback
// fires at each phase boundary with the monotonically non-decreasing
// percentages spec.md §4.5 fixes at 10/40/70/100 for the options-analysis
// workflow. Grounded on the teacher's workflow-engine phase loop, adapted
// from Ent-backed step persistence to the simpler callback-based telemetry
// this core uses for its synchronous (non deep-research) flows.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/executor"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
)

// ProgressCallback is invoked at each phase boundary. It must not block;
// Run recovers from a panicking callback and logs rather than letting
// telemetry break the workflow, per spec.md §4.5.
type ProgressCallback func(percent int, message string)

// Result is the outcome of running a Workflow: every agent's result keyed
// by agent id, plus the id of the phase whose agent(s) produced the final
// output (the last phase run).
type Result struct {
	Results    map[string]models.AgentResult
	FinalPhase string
}

// Coordinator runs Workflows against a fixed agent panel and provider.
type Coordinator struct {
	panel        map[string]*agent.Agent
	provider     llm.Provider
	cfg          llm.CallConfig
	synthesisCfg *llm.CallConfig
}

func New(panel map[string]*agent.Agent, provider llm.Provider, cfg llm.CallConfig) *Coordinator {
	return &Coordinator{panel: panel, provider: provider, cfg: cfg}
}

// WithSynthesisConfig overrides the CallConfig used for the workflow's
// "synthesis" phase (the options_synthesis_agent call), letting it use the
// longer deep-research-synthesis timeout spec.md §4.1 requires instead of
// the default per-call deadline every other phase uses.
func (c *Coordinator) WithSynthesisConfig(cfg llm.CallConfig) *Coordinator {
	c.synthesisCfg = &cfg
	return c
}

// Run drives workflow to completion, calling progress (if non-nil) at the
// start of the run and after each phase, with percentages interpolated
// evenly across the phase count but clamped to the fixed checkpoints a
// 3-phase options-analysis workflow uses (10, 40, 70, 100) when the
// workflow has exactly 3 phases, matching spec.md §4.5 exactly. Workflows
// with a different phase count fall back to even interpolation between 10
// and 100.
func (c *Coordinator) Run(ctx context.Context, workflow models.Workflow, input models.AgentInput, progress ProgressCallback) (Result, error) {
	emit(progress, startPercent(len(workflow.Phases)), "workflow started")

	results := models.EmptyPreviousResults()
	var finalPhase string

	for i, phase := range workflow.Phases {
		phaseAgents, err := c.resolveAgents(phase.Agents)
		if err != nil {
			return Result{}, fmt.Errorf("coordinator: phase %q: %w", phase.Name, err)
		}

		phaseInput := input
		phaseInput.PreviousResults = results

		phaseCfg := c.cfg
		if phase.Name == "synthesis" && c.synthesisCfg != nil {
			phaseCfg = *c.synthesisCfg
		}

		var phaseResults map[string]models.AgentResult
		switch phase.Kind {
		case models.PhaseKindParallel:
			phaseResults = executor.RunParallel(ctx, phaseAgents, c.provider, phaseInput, phaseCfg)
		case models.PhaseKindSequential:
			phaseResults = executor.RunSequential(ctx, phaseAgents, c.provider, phaseInput, phaseCfg)
		default:
			return Result{}, fmt.Errorf("coordinator: phase %q: unknown kind %q", phase.Name, phase.Kind)
		}

		for id, res := range phaseResults {
			results[id] = res
		}
		finalPhase = phase.Name

		emit(progress, percentAfterPhase(len(workflow.Phases), i), fmt.Sprintf("phase %q complete", phase.Name))
	}

	return Result{Results: results, FinalPhase: finalPhase}, nil
}

func (c *Coordinator) resolveAgents(ids []string) ([]*agent.Agent, error) {
	agents := make([]*agent.Agent, 0, len(ids))
	for _, id := range ids {
		a, ok := c.panel[id]
		if !ok {
			return nil, fmt.Errorf("unknown agent %q", id)
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// emit calls progress defensively: a panicking or slow callback must never
// break the workflow it's reporting on.
func emit(progress ProgressCallback, percent int, message string) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("coordinator: progress callback panicked", "panic", r, "percent", percent)
		}
	}()
	progress(percent, message)
}

// startPercent and percentAfterPhase implement the fixed 10/40/70/100
// checkpoint sequence for the canonical 3-phase workflow, and degrade to
// even interpolation for any other phase count so the Coordinator stays
// usable for workflows this module doesn't ship yet.
func startPercent(numPhases int) int {
	if numPhases == 3 {
		return 10
	}
	return 10
}

func percentAfterPhase(numPhases, phaseIndex int) int {
	if numPhases == 3 {
		switch phaseIndex {
		case 0:
			return 40
		case 1:
			return 70
		default:
			return 100
		}
	}
	if phaseIndex == numPhases-1 {
		return 100
	}
	span := 90
	return 10 + (phaseIndex+1)*span/numPhases
}
