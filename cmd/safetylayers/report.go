package main

import (
	"fmt"

	"github.com/advancedresearch/agent-safety-layers/internal/presentation/tui"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <scenario.yaml>",
	Short: "Show the checked decision of every scenario state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		layers, err := layersFlag(cmd)
		if err != nil {
			return err
		}
		agent, err := buildAgent(sc, layers)
		if err != nil {
			return err
		}

		render := tui.NewRenderer(cmd.OutOrStdout())
		out, err := render(tui.Report(cmd.Context(), sc, agent))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
