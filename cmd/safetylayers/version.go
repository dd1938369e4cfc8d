package main

import (
	"fmt"
	"strings"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of safetylayers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "safetylayers version %s\n", strings.TrimSpace(safetylayers.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
