package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowRegistry_DefensiveCopyOnGetAll(t *testing.T) {
	reg := NewWorkflowRegistry(map[string]WorkflowConfig{
		"w1": {Phases: []PhaseConfig{{Name: "p1", Kind: "parallel", Agents: []string{"a1"}}}},
	})

	all := reg.GetAll()
	delete(all, "w1")

	_, err := reg.Get("w1")
	require.NoError(t, err)
}

func TestWorkflowRegistry_GetUnknownReturnsError(t *testing.T) {
	reg := NewWorkflowRegistry(nil)
	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestDefaultWorkflows_OptionsAnalysisShape(t *testing.T) {
	reg := NewWorkflowRegistry(defaultWorkflows())
	w, err := reg.Get("options_analysis")
	require.NoError(t, err)
	require.Len(t, w.Phases, 3)
	assert.Equal(t, "parallel", w.Phases[0].Kind)
	assert.Equal(t, "sequential", w.Phases[2].Kind)
}
