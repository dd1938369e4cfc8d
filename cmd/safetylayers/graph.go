package main

import (
	"fmt"

	"github.com/advancedresearch/agent-safety-layers/internal/presentation/graph"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <scenario.yaml>",
	Short: "Export the scenario as a Mermaid diagram",
	Long: `Outputs a Mermaid diagram (graph TD) of the scenario's states, transitions and probe
perturbations. --check highlights the states whose decision requests a model update.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := scenario.Load(args[0])
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if check, _ := cmd.Flags().GetBool("check"); check {
			layers, err := layersFlag(cmd)
			if err != nil {
				return err
			}
			agent, err := buildAgent(sc, layers)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{Current: sc.Start}
			for _, state := range sc.States() {
				if !agent.Decide(cmd.Context(), state).Confirmed() {
					overlay.Flagged = append(overlay.Flagged, state)
				}
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(sc, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("check", false, "Highlight states whose decision is not confirmed")
}
