package scenario

import (
	"context"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
)

// DefaultMaxSteps bounds a simulation when no limit is given.
const DefaultMaxSteps = 100

// StopReason tells why a simulation ended.
type StopReason string

const (
	// StoppedUpdateRequested means a decision was not confirmed; the model needs
	// new information before acting on it.
	StoppedUpdateRequested StopReason = "update_requested"
	// StoppedFixedPoint means the confirmed action left the state unchanged.
	StoppedFixedPoint StopReason = "fixed_point"
	// StoppedMaxSteps means the step limit was reached.
	StoppedMaxSteps StopReason = "max_steps"
)

// Step is one decision of a simulation.
type Step struct {
	State    string                  `json:"state"`
	Decision domain.Decision[string] `json:"decision"`
	// Next is the state after acting. Empty when the decision was not confirmed.
	Next string `json:"next,omitempty"`
}

// Run is the trace of a simulation.
type Run struct {
	Steps   []Step     `json:"steps"`
	Final   string     `json:"final"`
	Stopped StopReason `json:"stopped"`
}

// Simulate drives agent through sc from start: decide, and act on confirmed
// decisions only. It never acts on an UpdateRequested decision.
func Simulate(ctx context.Context, sc *Scenario, agent *safetylayers.Agent[string, string], start string, maxSteps int) (Run, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	run := Run{Final: start, Stopped: StoppedMaxSteps}
	state := start
	for range maxSteps {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		decision := agent.Decide(ctx, state)
		if !decision.Confirmed() {
			run.Steps = append(run.Steps, Step{State: state, Decision: decision})
			run.Stopped = StoppedUpdateRequested
			return run, nil
		}

		next := sc.Act(state, decision.Action)
		run.Steps = append(run.Steps, Step{State: state, Decision: decision, Next: next})
		run.Final = next
		if next == state {
			run.Stopped = StoppedFixedPoint
			return run, nil
		}
		state = next
	}
	return run, nil
}
