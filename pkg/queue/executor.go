package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantmemo/memocore/pkg/models"
	"github.com/quantmemo/memocore/pkg/research"
)

// StrategySummaryMetadataKey is where a Task's originating StrategySummary
// is stashed when a deep-research run is enqueued — models.Task only
// carries a generic Metadata map, so the submission handler that creates
// the Task writes the summary under this key and OrchestratorExecutor
// reads it back out before calling the Orchestrator.
const StrategySummaryMetadataKey = "strategy_summary"

// Canceller is the subset of *research.Orchestrator the pool needs to
// service an external cancellation request for a task it is (or isn't)
// currently running.
type Canceller interface {
	Cancel(taskID string) bool
}

// OrchestratorExecutor adapts a *research.Orchestrator to the TaskExecutor
// contract a Worker drives.
type OrchestratorExecutor struct {
	orchestrator *research.Orchestrator
}

func NewOrchestratorExecutor(o *research.Orchestrator) *OrchestratorExecutor {
	return &OrchestratorExecutor{orchestrator: o}
}

func (e *OrchestratorExecutor) Execute(ctx context.Context, task models.Task) error {
	summary, err := decodeStrategySummary(task.Metadata)
	if err != nil {
		return fmt.Errorf("queue: decode strategy summary for task %s: %w", task.ID, err)
	}
	return e.orchestrator.Run(ctx, task.ID, summary)
}

func decodeStrategySummary(metadata map[string]any) (models.StrategySummary, error) {
	raw, ok := metadata[StrategySummaryMetadataKey]
	if !ok {
		return models.StrategySummary{}, fmt.Errorf("missing %q in task metadata", StrategySummaryMetadataKey)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return models.StrategySummary{}, fmt.Errorf("re-encode strategy summary: %w", err)
	}
	var summary models.StrategySummary
	if err := json.Unmarshal(encoded, &summary); err != nil {
		return models.StrategySummary{}, fmt.Errorf("decode strategy summary: %w", err)
	}
	return summary, nil
}
