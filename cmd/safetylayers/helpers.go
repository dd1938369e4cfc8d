package main

import (
	"fmt"
	"log/slog"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/internal/logging"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/spf13/cobra"
)

// newLogger builds the stderr logger from the --log-level flag.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(raw)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// layersFlag returns the --layers flag, or -1 to keep the scenario's default when
// the flag is not given. An explicit negative count is an error.
func layersFlag(cmd *cobra.Command) (int, error) {
	if !cmd.Flags().Changed("layers") {
		return -1, nil
	}
	n, _ := cmd.Flags().GetInt("layers")
	if n < 0 {
		return 0, fmt.Errorf("--layers %d: %w", n, domain.ErrNegativeDepth)
	}
	return n, nil
}

// buildAgent creates the scenario's agent, overriding its layer count when layers >= 0.
func buildAgent(sc *scenario.Scenario, layers int, opts ...safetylayers.Option) (*safetylayers.Agent[string, string], error) {
	if layers >= 0 {
		opts = append(opts, safetylayers.WithLayers(layers))
	}
	return sc.Agent(opts...)
}

// startState returns state, or the scenario's start state when state is empty.
func startState(sc *scenario.Scenario, state string) string {
	if state == "" {
		return sc.Start
	}
	return state
}
