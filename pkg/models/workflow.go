package models

// PhaseKind distinguishes a parallel wave from a sequential chain within a
// workflow phase.
type PhaseKind string

const (
	PhaseKindParallel   PhaseKind = "parallel"
	PhaseKindSequential PhaseKind = "sequential"
)

// Phase is one stage of a Workflow: either a set of agents run concurrently
// with no inter-agent dependencies, or a chain run in order with results
// threaded forward.
type Phase struct {
	Name   string    `json:"name"`
	Kind   PhaseKind `json:"kind"`
	Agents []string  `json:"agents"`
}

// Workflow is an ordered list of Phases.
type Workflow struct {
	Name   string  `json:"name"`
	Phases []Phase `json:"phases"`
}
