// Package executor runs one Agent, a set of Agents in parallel, or a
// sequential chain that threads prior results forward — the three
// primitives spec.md §4.4 defines. Grounded on the teacher's
// queue/executor.go stage-fan-out shape (one goroutine per agent, ordered
// result collection) and on BaSui01-agentflow's errgroup-based parallel
// validator chain for the fan-out mechanics themselves.
package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/quantmemo/memocore/pkg/agent"
	"github.com/quantmemo/memocore/pkg/llm"
	"github.com/quantmemo/memocore/pkg/models"
)

// RunOne executes a single agent and returns its result. It never returns
// a Go error: agent failures are represented in the returned AgentResult.
func RunOne(ctx context.Context, a *agent.Agent, provider llm.Provider, input models.AgentInput, cfg llm.CallConfig) models.AgentResult {
	return a.Execute(ctx, provider, input, cfg)
}

// RunParallel schedules every agent with the same input concurrently,
// waits for all of them, and never short-circuits on a single failure — a
// panicking or erroring agent goroutine only affects its own entry in the
// returned map. Ordering across agents is not observable; callers must
// not assume one agent's goroutine runs before another's.
func RunParallel(ctx context.Context, agents []*agent.Agent, provider llm.Provider, input models.AgentInput, cfg llm.CallConfig) map[string]models.AgentResult {
	results := make(map[string]models.AgentResult, len(agents))
	resultCh := make(chan models.AgentResult, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range agents {
		a := a
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					resultCh <- models.FailedResult(a.ID, panicMessage(r))
				}
			}()
			resultCh <- a.Execute(gctx, provider, input, cfg)
			return nil
		})
	}

	// errgroup's returned error is always nil here since every goroutine
	// recovers its own panic into a result rather than returning an error;
	// Wait is still needed to block until every goroutine has finished
	// sending to resultCh.
	_ = g.Wait()
	close(resultCh)

	for res := range resultCh {
		results[res.AgentID] = res
	}
	return results
}

// RunSequential threads PreviousResults forward: each agent's input
// includes every prior agent's result in the chain (whether it succeeded
// or not), and a failing agent still leaves a {}-data, Success=false entry
// so later agents can construct their input unconditionally.
func RunSequential(ctx context.Context, agents []*agent.Agent, provider llm.Provider, input models.AgentInput, cfg llm.CallConfig) map[string]models.AgentResult {
	previous := input.PreviousResults
	if previous == nil {
		previous = models.EmptyPreviousResults()
	} else {
		// defensive copy: never mutate the caller's map in place.
		copied := make(map[string]models.AgentResult, len(previous))
		for k, v := range previous {
			copied[k] = v
		}
		previous = copied
	}

	results := make(map[string]models.AgentResult, len(agents))

	for _, a := range agents {
		stepInput := input
		stepInput.PreviousResults = previous

		res := runOneRecovered(ctx, a, provider, stepInput, cfg)
		results[a.ID] = res
		previous[a.ID] = res
	}

	return results
}

func runOneRecovered(ctx context.Context, a *agent.Agent, provider llm.Provider, input models.AgentInput, cfg llm.CallConfig) (res models.AgentResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.FailedResult(a.ID, panicMessage(r))
		}
	}()
	return a.Execute(ctx, provider, input, cfg)
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return "panic: " + err.Error()
	}
	return "panic"
}
