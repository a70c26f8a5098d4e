package research

import "errors"

// ErrDeadlineExceeded is recorded as the FAILED reason when a run's soft
// deadline (config.DeepResearchDeadlineS) elapses before the run completes.
var ErrDeadlineExceeded = errors.New("research: deadline exceeded")

// ErrCancelled is recorded when the caller's context is cancelled mid-run.
var ErrCancelled = errors.New("research: cancelled")

const (
	reasonDeadlineExceeded = "deadline_exceeded"
	reasonCancelled        = "cancelled"
)
