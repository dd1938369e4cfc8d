package scenario_test

import (
	"context"
	"testing"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulate(t *testing.T) {
	s := load(t, "countdown.yaml")

	tests := []struct {
		name     string
		layers   int
		maxSteps int
		steps    int
		final    string
		stopped  scenario.StopReason
		layer    int
	}{
		{"no layers reaches the goal", 0, 0, 5, "4/4", scenario.StoppedFixedPoint, 0},
		{"one layer stops one short", 1, 0, 4, "4/3", scenario.StoppedUpdateRequested, 1},
		{"two layers stop two short", 2, 0, 3, "4/2", scenario.StoppedUpdateRequested, 2},
		{"step limit", 0, 2, 2, "4/2", scenario.StoppedMaxSteps, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, err := s.Agent(safetylayers.WithLayers(tt.layers))
			require.NoError(t, err)

			run, err := scenario.Simulate(context.Background(), s, agent, s.Start, tt.maxSteps)
			require.NoError(t, err)

			assert.Len(t, run.Steps, tt.steps)
			assert.Equal(t, tt.final, run.Final)
			assert.Equal(t, tt.stopped, run.Stopped)

			last := run.Steps[len(run.Steps)-1]
			assert.Equal(t, tt.layer, last.Decision.DisagreementLayer)
			if tt.stopped == scenario.StoppedUpdateRequested {
				assert.Equal(t, tt.final, last.State)
				assert.Empty(t, last.Next, "unconfirmed decisions are never acted on")
			}
		})
	}
}

func TestSimulate_Cancelled(t *testing.T) {
	s := load(t, "countdown.yaml")
	agent, err := s.Agent()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := scenario.Simulate(ctx, s, agent, s.Start, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, run.Steps)
	assert.Equal(t, s.Start, run.Final)
}
