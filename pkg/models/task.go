package models

import "time"

// TaskStatus is the durable state of a long-running deep-research run.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSuccess   TaskStatus = "SUCCESS"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// IsTerminal reports whether status is one of SUCCESS|FAILED|CANCELLED.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// HistoryEntry is one append-only record in a Task's execution history.
// DeltaID, when non-empty, makes MergeUpdate idempotent: re-applying an
// update carrying the same DeltaID is a no-op.
type HistoryEntry struct {
	DeltaID string    `json:"delta_id,omitempty"`
	Ts      time.Time `json:"ts"`
	Phase   string    `json:"phase"`
	Event   string    `json:"event"`
	Detail  string    `json:"detail,omitempty"`
}

// Task is the persisted record of a long-running deep-research run.
// Progress is non-decreasing, ExecutionHistory is append-only, and the
// terminal Status is write-once — all enforced by the taskstore, never by
// callers directly mutating this struct.
type Task struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id,omitempty"`
	Type            string           `json:"type"`
	Status          TaskStatus       `json:"status"`
	Progress        int              `json:"progress"`
	Metadata        map[string]any   `json:"metadata"`
	ExecutionHistory []HistoryEntry  `json:"execution_history"`
	ResultRef       string           `json:"result_ref,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Report is the terminal artifact a deep-research Task's ResultRef points to.
type Report struct {
	ID            string         `json:"id"`
	ReportContent string         `json:"report_content"`
	ModelUsed     string         `json:"model_used"`
	CreatedAt     time.Time      `json:"created_at"`
	Metadata      map[string]any `json:"metadata"`
}
