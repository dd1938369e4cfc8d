package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/pkg/adapters/mcp"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <scenario.yaml>",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes a scenario agent as an MCP Server, so other agents can ask it for decisions
checked by safety layers.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		sc, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		layers, err := layersFlag(cmd)
		if err != nil {
			return err
		}
		agent, err := buildAgent(sc, layers, safetylayers.WithLogger(logger))
		if err != nil {
			return err
		}

		maxLayers, _ := cmd.Flags().GetInt("max-layers")
		srv := mcp.NewServer(sc, agent, mcp.WithLogger(logger), mcp.WithMaxLayers(maxLayers))

		switch transport {
		case "stdio":
			logger.Info("starting mcp server (stdio)", "scenario", sc.Name)
			return srv.ServeStdio()
		case "sse":
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("mcp server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	mcpCmd.Flags().Int("max-layers", safetylayers.DefaultMaxLayers, "Largest layer count a tool call may ask for (0: unbounded)")
}
