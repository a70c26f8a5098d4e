package research

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/reportstore"
	"github.com/quantmemo/memocore/pkg/taskstore"
)

type fakeProvider struct {
	jsonOut      map[string]any
	textOverride string
	failIDs      map[string]bool
	currentAgent string
}

func longText() string {
	return "a sufficiently long synthetic analyst response that clears the minimum response length threshold for deep research testing purposes here."
}

func (f *fakeProvider) Name() string                         { return "fake" }
func (f *fakeProvider) Healthcheck(ctx context.Context) error { return nil }
func (f *fakeProvider) GenerateText(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	if f.textOverride != "" {
		return f.textOverride, nil
	}
	return longText(), nil
}
func (f *fakeProvider) GenerateWithSearch(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	return f.GenerateText(ctx, p, s, cfg)
}
func (f *fakeProvider) GenerateJSON(ctx context.Context, p, s, schema string, cfg llm.CallConfig) (map[string]any, error) {
	return f.jsonOut, nil
}

func testSummary() models.StrategySummary {
	return models.StrategySummary{
		Symbol:       "AAPL",
		StrategyName: "Iron Condor",
		Legs:         []models.Leg{{Type: "call", Side: "short", Strike: 150, Expiry: "2026-09-18"}},
	}
}

func newOrchestrator(provider llm.Provider, tasks taskstore.Store, reports reportstore.Store, deadline time.Duration) *Orchestrator {
	return New(agent.Panel(), provider, llm.CallConfig{Model: "test-model"}, llm.CallConfig{Model: "test-model"}, tasks, reports, deadline)
}

func TestOrchestrator_Run_DeadlineZero_FailsImmediatelyWithoutInvokingAnyAgent(t *testing.T) {
	calls := 0
	provider := &fakeProvider{jsonOut: map[string]any{"risk_score": 1.0}}
	countingProvider := &countingWrapper{inner: provider, calls: &calls}

	tasks := taskstore.NewMemoryStore()
	require.NoError(t, tasks.Create(context.Background(), models.Task{ID: "t1", Status: models.TaskStatusPending}))

	o := newOrchestrator(countingProvider, tasks, reportstore.NewMemoryStore(), 0)
	err := o.Run(context.Background(), "t1", testSummary())

	assert.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.Equal(t, 0, calls)

	task, getErr := tasks.Get(context.Background(), "t1")
	require.NoError(t, getErr)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Equal(t, ErrDeadlineExceeded.Error(), task.Metadata["error"])
	require.NotEmpty(t, task.ExecutionHistory)
	last := task.ExecutionHistory[len(task.ExecutionHistory)-1]
	assert.Equal(t, reasonDeadlineExceeded, last.Detail)
}

type countingWrapper struct {
	inner llm.Provider
	calls *int
}

func (c *countingWrapper) Name() string                         { return c.inner.Name() }
func (c *countingWrapper) Healthcheck(ctx context.Context) error { return c.inner.Healthcheck(ctx) }
func (c *countingWrapper) GenerateText(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	*c.calls++
	return c.inner.GenerateText(ctx, p, s, cfg)
}
func (c *countingWrapper) GenerateWithSearch(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	*c.calls++
	return c.inner.GenerateWithSearch(ctx, p, s, cfg)
}
func (c *countingWrapper) GenerateJSON(ctx context.Context, p, s, schema string, cfg llm.CallConfig) (map[string]any, error) {
	*c.calls++
	return c.inner.GenerateJSON(ctx, p, s, schema, cfg)
}

func TestOrchestrator_Run_HappyPath_EndsAtSuccessWithResultRef(t *testing.T) {
	provider := &fakeProvider{jsonOut: map[string]any{
		"risk_score": 5.0, "iv_rank": 40.0, "alignment_score": 6.0, "overall_score": 7.0,
		"analysis_text": "fine", "memo_markdown": "# Memo\n\nBody text.", "verdict": "favorable",
		"key_insights":          []any{"insight one"},
		"final_recommendation":  "hold",
		"alternatives":          []any{map[string]any{"name": "vertical spread", "rationale": "lower risk", "tradeoffs": "lower reward"}},
		"questions":             []any{"What is the IV crush risk?", "How liquid are the strikes?"},
	}}

	tasks := taskstore.NewMemoryStore()
	require.NoError(t, tasks.Create(context.Background(), models.Task{ID: "t1", Status: models.TaskStatusPending}))
	reports := reportstore.NewMemoryStore()

	o := newOrchestrator(provider, tasks, reports, 30*time.Minute)
	err := o.Run(context.Background(), "t1", testSummary())
	require.NoError(t, err)

	task, getErr := tasks.Get(context.Background(), "t1")
	require.NoError(t, getErr)
	assert.Equal(t, models.TaskStatusSuccess, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.NotEmpty(t, task.ResultRef)

	report, getErr := reports.Get(context.Background(), task.ResultRef)
	require.NoError(t, getErr)
	assert.Contains(t, report.ReportContent, "Snapshot")
	assert.Contains(t, report.ReportContent, "Deep Analysis")
	assert.Contains(t, report.ReportContent, "Action Plan")
}

func TestOrchestrator_Run_PartialAgentFailure_IncludesConfidenceAdjustment(t *testing.T) {
	provider := &failingIVProvider{
		fakeProvider: fakeProvider{jsonOut: map[string]any{
			"risk_score": 5.0, "alignment_score": 6.0, "overall_score": 7.0,
			"memo_markdown": "# Memo\n\nBody text.",
		}},
	}

	tasks := taskstore.NewMemoryStore()
	require.NoError(t, tasks.Create(context.Background(), models.Task{ID: "t1", Status: models.TaskStatusPending}))
	reports := reportstore.NewMemoryStore()

	o := newOrchestrator(provider, tasks, reports, 30*time.Minute)
	err := o.Run(context.Background(), "t1", testSummary())
	require.NoError(t, err)

	task, getErr := tasks.Get(context.Background(), "t1")
	require.NoError(t, getErr)
	report, getErr := reports.Get(context.Background(), task.ResultRef)
	require.NoError(t, getErr)
	assert.Contains(t, report.ReportContent, "Confidence Adjustment")
	assert.Contains(t, report.ReportContent, "IV environment unavailable")
}

// failingIVProvider fails every GenerateJSON call whose schema hint is the
// iv_environment_analyst's, simulating spec.md §8 scenario 4's
// InvalidResponse for exactly one panel agent.
type failingIVProvider struct {
	fakeProvider
}

func (f *failingIVProvider) GenerateJSON(ctx context.Context, p, s, schema string, cfg llm.CallConfig) (map[string]any, error) {
	if schema == `{"iv_rank": number, "iv_percentile": number, "environment": "cheap|fair|expensive", "crush_risk_score": number, "analysis_text": string}` {
		return nil, assertErr{}
	}
	return f.fakeProvider.GenerateJSON(ctx, p, s, schema, cfg)
}

type assertErr struct{}

func (assertErr) Error() string { return "invalid response" }

func TestOrchestrator_Run_ConcurrentQuestionAnswering_NoHistoryLost(t *testing.T) {
	provider := &fakeProvider{jsonOut: map[string]any{
		"risk_score": 5.0, "iv_rank": 40.0, "alignment_score": 6.0, "overall_score": 7.0,
		"memo_markdown": "# Memo\n\nBody text.",
		"questions":     []any{"q1", "q2", "q3", "q4"},
	}}

	tasks := taskstore.NewMemoryStore()
	initial := models.Task{ID: "t1", Status: models.TaskStatusPending}
	require.NoError(t, tasks.Create(context.Background(), initial))
	reports := reportstore.NewMemoryStore()

	o := newOrchestrator(provider, tasks, reports, 30*time.Minute)
	err := o.Run(context.Background(), "t1", testSummary())
	require.NoError(t, err)

	task, getErr := tasks.Get(context.Background(), "t1")
	require.NoError(t, getErr)
	assert.GreaterOrEqual(t, task.Progress, 90)

	answered := 0
	for _, h := range task.ExecutionHistory {
		if h.Event == "question_answered" {
			answered++
		}
	}
	assert.Equal(t, 4, answered, "all 4 concurrent question-answer events must be recorded")
}

// blockingProvider signals startedOnce on its first call and then blocks
// until the caller's context is cancelled, returning ctx.Err() — used to
// deterministically land a Cancel() call while a run is mid-phase.
type blockingProvider struct {
	started   chan struct{}
	startOnce *sync.Once
}

func (b *blockingProvider) Name() string                         { return "blocking" }
func (b *blockingProvider) Healthcheck(ctx context.Context) error { return nil }
func (b *blockingProvider) GenerateText(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	return b.block(ctx)
}
func (b *blockingProvider) GenerateWithSearch(ctx context.Context, p, s string, cfg llm.CallConfig) (string, error) {
	return b.block(ctx)
}
func (b *blockingProvider) GenerateJSON(ctx context.Context, p, s, schema string, cfg llm.CallConfig) (map[string]any, error) {
	_, err := b.block(ctx)
	return nil, err
}
func (b *blockingProvider) block(ctx context.Context) (string, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-ctx.Done()
	return "", ctx.Err()
}

func TestOrchestrator_Cancel_StopsRunAndFreezesProgressWithoutResultRef(t *testing.T) {
	provider := &blockingProvider{started: make(chan struct{}), startOnce: &sync.Once{}}

	tasks := taskstore.NewMemoryStore()
	require.NoError(t, tasks.Create(context.Background(), models.Task{ID: "t1", Status: models.TaskStatusPending}))
	reports := reportstore.NewMemoryStore()

	o := newOrchestrator(provider, tasks, reports, 30*time.Minute)

	runErr := make(chan error, 1)
	go func() { runErr <- o.Run(context.Background(), "t1", testSummary()) }()

	select {
	case <-provider.started:
	case <-time.After(2 * time.Second):
		t.Fatal("provider was never invoked")
	}

	require.True(t, o.Cancel("t1"), "Cancel must find the in-flight run")

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly after Cancel")
	}

	task, getErr := tasks.Get(context.Background(), "t1")
	require.NoError(t, getErr)
	assert.Equal(t, models.TaskStatusCancelled, task.Status)
	assert.Empty(t, task.ResultRef)
}
