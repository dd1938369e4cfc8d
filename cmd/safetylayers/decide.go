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

var decideCmd = &cobra.Command{
	Use:   "decide <scenario.yaml>",
	Short: "Decide once and check the decision with safety layers",
	Long: `Decides in one state of the scenario (its start state by default) and reports the
action together with the safety outcome. --probes prints every layer's comparison.`,
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
		jsonMode, _ := cmd.Flags().GetBool("json")
		probes, _ := cmd.Flags().GetBool("probes")

		layers, err := layersFlag(cmd)
		if err != nil {
			return err
		}

		return runDecide(cmd.Context(), cmd.OutOrStdout(), sc, logger, decideOptions{
			State:  state,
			Layers: layers,
			JSON:   jsonMode,
			Probes: probes,
		})
	},
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().String("state", "", "State to decide in (default: the scenario's start)")
	decideCmd.Flags().Bool("json", false, "Print the decision as JSON")
	decideCmd.Flags().Bool("probes", false, "Print every layer's comparison")
}

type decideOptions struct {
	State  string
	Layers int
	JSON   bool
	Probes bool
}

type decideResult struct {
	Scenario string                  `json:"scenario"`
	State    string                  `json:"state"`
	Decision domain.Decision[string] `json:"decision"`
	Probes   []*domain.ProbeEvent    `json:"probes,omitempty"`
}

func runDecide(ctx context.Context, w io.Writer, sc *scenario.Scenario, logger *slog.Logger, opts decideOptions) error {
	state := startState(sc, opts.State)
	if !sc.Knows(state) {
		return fmt.Errorf("state %q: %w", state, domain.ErrUnknownState)
	}

	var probes []*domain.ProbeEvent
	hooks := domain.LifecycleHooks{}
	if opts.Probes {
		hooks.OnProbe = func(_ context.Context, e *domain.ProbeEvent) {
			probes = append(probes, e)
		}
	}

	agent, err := buildAgent(sc, opts.Layers,
		safetylayers.WithLogger(logger),
		safetylayers.WithLifecycleHooks(hooks),
	)
	if err != nil {
		return err
	}

	decision := agent.Decide(ctx, state)

	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(decideResult{Scenario: sc.Name, State: state, Decision: decision, Probes: probes})
	}

	style := tui.NewStyler(w)
	fmt.Fprintf(w, "%s: %s -> %s (%s)\n", sc.Name, state, style.Action(decision.Action), style.Outcome(decision.Outcome))
	if decision.DisagreementLayer > 0 {
		fmt.Fprintf(w, "%s\n", style.Faint(fmt.Sprintf("first disagreement at layer %d of %d, %d disagreeing",
			decision.DisagreementLayer, decision.Layers, decision.Disagreements)))
	}
	for _, p := range probes {
		result := "agreed"
		switch {
		case p.NoOp:
			result = "no-op"
		case !p.Agreed:
			result = "disagreed"
		}
		fmt.Fprintf(w, "  layer %d: %v -> %v %s\n", p.Layer, p.Before, p.After, style.Faint(result))
	}
	return nil
}
