// Package research implements the Deep Research Orchestrator: a long-running
// multi-phase workflow that invokes the Coordinator for an internal expert
// panel, proposes alternative strategies, plans and answers web-grounded
// research questions, then synthesizes everything into a three-section
// memo — all while durably persisting progress into a Task row under the
// atomic-merge rule spec.md §4.7 defines. Grounded on the teacher's
// pkg/queue session lifecycle (claim → run phases → terminal state) and on
// taskstore's atomic merge for the concurrency-safe mutation rule.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/coordinator"
	"github.com/quantmemo/memocore/pkg/executor"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/reportstore"
	"github.com/quantmemo/memocore/pkg/taskstore"
)

const (
	phaseA       = "phase_a"
	phaseAPlus   = "phase_a_plus"
	phaseB1      = "phase_b1_planning"
	phaseB2      = "phase_b2_research"
	phaseB3      = "phase_b3_synthesis"
	questionTimeout = 120 * time.Second
	maxQuestions    = 5
)

// Orchestrator drives one deep-research Task to a terminal state.
// Collaborator adapters are optional (nil-safe): when absent or when a
// fetch fails, the orchestrator proceeds with whatever strategy summary it
// was given and records a Confidence Adjustment note instead of failing
// the run.
type Orchestrator struct {
	panel               map[string]*agent.Agent
	provider            llm.Provider
	cfg                 llm.CallConfig
	synthesisCfg        llm.CallConfig
	tasks               taskstore.Store
	reports             reportstore.Store
	deadline            time.Duration
	chainAdapter        models.ChainAdapter
	fundamentalsAdapter models.FundamentalsAdapter
	marketContextSvc    models.MarketContextService

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New builds an Orchestrator. cfg is used for the panel and planning/QA
// calls; synthesisCfg is used for the options_synthesis_agent call inside
// Phase A's internal panel, carrying the longer
// llm.DeepResearchSynthesisTimeout per-call deadline spec.md §4.1
// prescribes for deep-research synthesis calls specifically.
func New(panel map[string]*agent.Agent, provider llm.Provider, cfg, synthesisCfg llm.CallConfig, tasks taskstore.Store, reports reportstore.Store, deadline time.Duration) *Orchestrator {
	if synthesisCfg.Timeout <= 0 {
		synthesisCfg.Timeout = llm.DeepResearchSynthesisTimeout
	}
	return &Orchestrator{
		panel: panel, provider: provider, cfg: cfg, synthesisCfg: synthesisCfg,
		tasks: tasks, reports: reports, deadline: deadline,
		running: make(map[string]context.CancelFunc),
	}
}

// Cancel requests that taskID's in-flight run stop. It cancels the run's
// context.Context (aborting in-flight provider calls that honor it) and
// returns true if a run for taskID was actually found on this process —
// false if the task wasn't running here (already terminal, or running on a
// different worker process).
func (o *Orchestrator) Cancel(taskID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cancel, ok := o.running[taskID]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (o *Orchestrator) registerRun(taskID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running[taskID] = cancel
}

func (o *Orchestrator) unregisterRun(taskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, taskID)
}

// WithCollaborators attaches the optional external data adapters used to
// enrich Phase A's input. Any nil adapter is simply skipped.
func (o *Orchestrator) WithCollaborators(chain models.ChainAdapter, fundamentals models.FundamentalsAdapter, marketContext models.MarketContextService) *Orchestrator {
	o.chainAdapter = chain
	o.fundamentalsAdapter = fundamentals
	o.marketContextSvc = marketContext
	return o
}

// Run drives taskID through Phase A → A+ → B1 → B2 → B3 to a terminal
// status. It never returns a result directly: the outcome is the Task's
// terminal state plus (on success) a stored reportstore.Report pointed to
// by ResultRef.
func (o *Orchestrator) Run(ctx context.Context, taskID string, summary models.StrategySummary) error {
	if o.deadline <= 0 {
		return o.failTerminal(taskID, "", reasonDeadlineExceeded, ErrDeadlineExceeded, 0)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()
	o.registerRun(taskID, cancel)
	defer o.unregisterRun(taskID)

	running := models.TaskStatusRunning
	o.merge(runCtx, taskID, taskstore.Delta{
		Status:       &running,
		Progress:     intPtr(0),
		HistoryEntry: &models.HistoryEntry{Phase: "startup", Event: "run_started"},
	})

	input, confidenceNotes := o.enrichInput(runCtx, summary)

	// Phase A — internal expert panel.
	phaseAResult, err := o.runPhaseA(runCtx, taskID, input)
	if done, terminalErr := o.checkTerminal(runCtx, taskID, phaseA, 0); done {
		return terminalErr
	}
	if err != nil {
		return o.failTerminal(taskID, phaseA, "agent_panel_error", err, 40)
	}
	synthesis := phaseAResult.Results["options_synthesis_agent"]
	for id, res := range phaseAResult.Results {
		if !res.Success {
			if note, ok := agentConfidenceNotes[id]; ok {
				confidenceNotes = append(confidenceNotes, note)
			}
		}
	}

	// Phase A+ — alternative-strategy proposals.
	altResult := o.runAltStrategy(runCtx, taskID, input, synthesis)
	if done, terminalErr := o.checkTerminal(runCtx, taskID, phaseAPlus, 40); done {
		return terminalErr
	}
	o.merge(runCtx, taskID, taskstore.Delta{
		Progress:     intPtr(55),
		HistoryEntry: &models.HistoryEntry{Phase: phaseAPlus, Event: "alt_strategies_complete"},
	})

	// Phase B1 — planning.
	questions := o.runPlanning(runCtx, taskID, input, synthesis)
	if done, terminalErr := o.checkTerminal(runCtx, taskID, phaseB1, 55); done {
		return terminalErr
	}
	o.merge(runCtx, taskID, taskstore.Delta{
		Progress:     intPtr(65),
		HistoryEntry: &models.HistoryEntry{Phase: phaseB1, Event: "planning_complete", Detail: fmt.Sprintf("%d questions", len(questions))},
	})

	// Phase B2 — per-question web-grounded research.
	qaResults := o.runQuestionAnswering(runCtx, taskID, input, questions)
	if done, terminalErr := o.checkTerminal(runCtx, taskID, phaseB2, 65); done {
		return terminalErr
	}
	o.merge(runCtx, taskID, taskstore.Delta{
		Progress:     intPtr(90),
		HistoryEntry: &models.HistoryEntry{Phase: phaseB2, Event: "research_complete"},
	})

	// Phase B3 — final synthesis. A cancellation or deadline hit here must
	// still take effect before a ResultRef is ever assigned.
	if done, terminalErr := o.checkTerminal(runCtx, taskID, phaseB2, 90); done {
		return terminalErr
	}
	memo := buildFinalMemo(synthesis, altResult, qaResults, confidenceNotes)
	o.merge(runCtx, taskID, taskstore.Delta{
		Progress:     intPtr(99),
		HistoryEntry: &models.HistoryEntry{Phase: phaseB3, Event: "memo_assembled"},
	})

	report := models.Report{
		ID:            uuid.NewString(),
		ReportContent: memo,
		ModelUsed:     o.cfg.Model,
		CreatedAt:     time.Now().UTC(),
		Metadata: map[string]any{
			"questions_answered": len(qaResults),
			"confidence_notes":   confidenceNotes,
		},
	}
	saveCtx, saveCancel := detachedCtx()
	defer saveCancel()
	if err := o.reports.Save(saveCtx, report); err != nil {
		return o.failTerminal(taskID, phaseB3, "report_save_failed", err, 99)
	}

	success := models.TaskStatusSuccess
	resultRef := report.ID
	o.mergeDetached(taskID, taskstore.Delta{
		Status:       &success,
		Progress:     intPtr(100),
		ResultRef:    &resultRef,
		HistoryEntry: &models.HistoryEntry{Phase: phaseB3, Event: "run_complete"},
	})
	return nil
}

func (o *Orchestrator) runPhaseA(ctx context.Context, taskID string, input models.AgentInput) (coordinator.Result, error) {
	c := coordinator.New(o.panel, o.provider, o.cfg).WithSynthesisConfig(o.synthesisCfg)
	progressCb := func(percent int, message string) {
		o.merge(ctx, taskID, taskstore.Delta{
			Progress:     intPtr(rescale(percent, 0, 40)),
			HistoryEntry: &models.HistoryEntry{Phase: phaseA, Event: message},
		})
	}
	return c.Run(ctx, coordinator.OptionsAnalysisWorkflow(), input, progressCb)
}

func (o *Orchestrator) runAltStrategy(ctx context.Context, taskID string, input models.AgentInput, synthesis models.AgentResult) models.AgentResult {
	a, ok := o.panel["alt_strategy_agent"]
	if !ok {
		return models.FailedResult("alt_strategy_agent", "not configured")
	}
	altInput := input
	altInput.MarketContext = withSynthesisContext(input.MarketContext, synthesis)
	result := executor.RunOne(ctx, a, o.provider, altInput, o.cfg)
	event := "alt_strategy_success"
	if !result.Success {
		event = "alt_strategy_failure"
	}
	o.merge(ctx, taskID, taskstore.Delta{HistoryEntry: &models.HistoryEntry{Phase: phaseAPlus, Event: event, Detail: result.Error}})
	return result
}

func (o *Orchestrator) runPlanning(ctx context.Context, taskID string, input models.AgentInput, synthesis models.AgentResult) []string {
	a, ok := o.panel["research_question_agent"]
	if !ok {
		return nil
	}
	planInput := input
	planInput.MarketContext = withSynthesisContext(input.MarketContext, synthesis)
	result := executor.RunOne(ctx, a, o.provider, planInput, o.cfg)
	if !result.Success {
		o.merge(ctx, taskID, taskstore.Delta{HistoryEntry: &models.HistoryEntry{Phase: phaseB1, Event: "planning_failed", Detail: result.Error}})
		return nil
	}
	return extractQuestions(result.Data)
}

func (o *Orchestrator) runQuestionAnswering(ctx context.Context, taskID string, input models.AgentInput, questions []string) []qaAnswer {
	a, ok := o.panel["question_answer_agent"]
	if !ok || len(questions) == 0 {
		return nil
	}

	answers := make([]qaAnswer, len(questions))
	progressPerQuestion := 25 / len(questions)

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			qCtx, qCancel := context.WithTimeout(gctx, questionTimeout)
			defer qCancel()

			qInput := input
			qInput.MarketContext = withQuestionContext(input.MarketContext, q)
			result := executor.RunOne(qCtx, a, o.provider, qInput, o.cfg)

			answers[i] = qaAnswer{Question: q, Answer: result.AnalysisText, Success: result.Success}

			event := "question_answered"
			if !result.Success {
				event = "question_failed"
			}
			o.merge(ctx, taskID, taskstore.Delta{
				Progress:     intPtr(clamp(65+(i+1)*progressPerQuestion, 65, 90)),
				HistoryEntry: &models.HistoryEntry{Phase: phaseB2, Event: event, Detail: q},
			})
			return nil
		})
	}
	// Errors are never returned: each goroutine captures its own failure
	// into answers[i] rather than failing the phase, per spec.md §4.7's
	// "partial failures yield empty answers but do not fail the phase."
	_ = g.Wait()
	return answers
}

// checkTerminal inspects runCtx after a phase completes. If the run's
// context ended (deadline or external cancellation), it records the
// matching terminal state and reports that Run should stop.
func (o *Orchestrator) checkTerminal(runCtx context.Context, taskID, phase string, progress int) (bool, error) {
	if runCtx.Err() == nil {
		return false, nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return true, o.failTerminal(taskID, phase, reasonDeadlineExceeded, ErrDeadlineExceeded, progress)
	}
	return true, o.cancelTerminal(taskID, phase, progress)
}

func (o *Orchestrator) failTerminal(taskID, phase, reason string, cause error, progress int) error {
	failed := models.TaskStatusFailed
	delta := taskstore.Delta{
		Status: &failed,
		Metadata: map[string]any{
			"error":       cause.Error(),
			"failed_phase": phase,
		},
		HistoryEntry: &models.HistoryEntry{Phase: phase, Event: "failed", Detail: reason},
	}
	if progress > 0 {
		delta.Progress = intPtr(progress)
	}
	o.mergeDetached(taskID, delta)
	return cause
}

func (o *Orchestrator) cancelTerminal(taskID, phase string, progress int) error {
	cancelled := models.TaskStatusCancelled
	o.mergeDetached(taskID, taskstore.Delta{
		Status:       &cancelled,
		HistoryEntry: &models.HistoryEntry{Phase: phase, Event: "cancelled"},
	})
	return ErrCancelled
}

func (o *Orchestrator) merge(ctx context.Context, taskID string, delta taskstore.Delta) {
	delta.DeltaID = uuid.NewString()
	if _, err := o.tasks.MergeUpdate(ctx, taskID, delta); err != nil {
		phase := ""
		if delta.HistoryEntry != nil {
			phase = delta.HistoryEntry.Phase
		}
		slog.Error("research: task merge failed", "task_id", taskID, "phase", phase, "error", err)
	}
}

// mergeDetached is used for the terminal status transition: the run's own
// context may already be cancelled or expired by the time we need to
// record that fact, so the write itself uses a short-lived context of its
// own rather than the one that just ended.
func (o *Orchestrator) mergeDetached(taskID string, delta taskstore.Delta) {
	ctx, cancel := detachedCtx()
	defer cancel()
	o.merge(ctx, taskID, delta)
}

func detachedCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func rescale(percent, lo, hi int) int {
	return lo + percent*(hi-lo)/100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func intPtr(v int) *int { return &v }

func extractQuestions(data map[string]any) []string {
	raw, ok := data["questions"].([]any)
	if !ok {
		return nil
	}
	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		if s, ok := q.(string); ok && s != "" {
			questions = append(questions, s)
		}
		if len(questions) >= maxQuestions {
			break
		}
	}
	return questions
}

func withSynthesisContext(base map[string]any, synthesis models.AgentResult) map[string]any {
	merged := make(map[string]any, len(base)+2)
	for k, v := range base {
		merged[k] = v
	}
	if verdict, ok := synthesis.Data["verdict"].(string); ok {
		merged["synthesis_verdict"] = verdict
	}
	if synthesis.AnalysisText != "" {
		merged["synthesis_analysis_text"] = synthesis.AnalysisText
	}
	return merged
}

func withQuestionContext(base map[string]any, question string) map[string]any {
	merged := make(map[string]any, len(base)+1)
	for k, v := range base {
		merged[k] = v
	}
	merged["research_question"] = question
	return merged
}
