package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/internal/presentation/tui"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Decide and act until a decision is not confirmed",
	Long: `Runs the scenario from its start state: every confirmed action is performed, and the
run stops at the first decision that requests a model update, at a fixed point, or
after --steps decisions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		sc, err := scenario.Load(args[0])
		if err != nil {
			return err
		}

		state, _ := cmd.Flags().GetString("state")
		steps, _ := cmd.Flags().GetInt("steps")
		jsonMode, _ := cmd.Flags().GetBool("json")

		layers, err := layersFlag(cmd)
		if err != nil {
			return err
		}

		return runSimulate(cmd.Context(), cmd.OutOrStdout(), sc, logger, simulateOptions{
			State:  state,
			Layers: layers,
			Steps:  steps,
			JSON:   jsonMode,
		})
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().String("state", "", "State to start from (default: the scenario's start)")
	simulateCmd.Flags().Int("steps", scenario.DefaultMaxSteps, "Maximum number of decisions")
	simulateCmd.Flags().Bool("json", false, "Print the run as JSON")
}

type simulateOptions struct {
	State  string
	Layers int
	Steps  int
	JSON   bool
}

func runSimulate(ctx context.Context, w io.Writer, sc *scenario.Scenario, logger *slog.Logger, opts simulateOptions) error {
	state := startState(sc, opts.State)
	if !sc.Knows(state) {
		return fmt.Errorf("state %q: %w", state, domain.ErrUnknownState)
	}

	agent, err := buildAgent(sc, opts.Layers, safetylayers.WithLogger(logger))
	if err != nil {
		return err
	}

	run, err := scenario.Simulate(ctx, sc, agent, state, opts.Steps)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	style := tui.NewStyler(w)
	fmt.Fprintf(w, "%s\n", style.Title(fmt.Sprintf("%s with %d safety layer(s)", sc.Name, agent.Layers())))
	for i, step := range run.Steps {
		if step.Decision.Confirmed() {
			fmt.Fprintf(w, "%3d. %s: %s -> %s\n", i+1, step.State, style.Action(step.Decision.Action), step.Next)
			continue
		}
		fmt.Fprintf(w, "%3d. %s: %s (%s at layer %d)\n", i+1, step.State, style.Action(step.Decision.Action),
			style.Outcome(step.Decision.Outcome), step.Decision.DisagreementLayer)
	}
	fmt.Fprintf(w, "stopped: %s after %d step(s) in %s\n", run.Stopped, len(run.Steps), run.Final)
	return nil
}
