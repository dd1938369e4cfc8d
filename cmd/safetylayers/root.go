package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "safetylayers",
	Short: "Check an agent's decisions against perturbations of its own model",
	Long: `safetylayers wraps a decision procedure in safety layers. Each layer perturbs the
agent's model once and checks that the decision survives; a decision that does not is
still returned, but flagged as requesting a model update.

Scenarios are YAML files describing states, decisions, perturbations and transitions.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Int("layers", -1, "Number of safety layers (default: the scenario's)")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for session persistence (default: in memory)")
	rootCmd.PersistentFlags().String("redis-prefix", "safetylayers:", "Key prefix for Redis")
}
