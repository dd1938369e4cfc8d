package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/internal/logging"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const scenarioURI = "safetylayers://scenario"

// DecideArgs are the arguments of the decide tool.
type DecideArgs struct {
	State  string `json:"state"`
	Layers *int   `json:"layers,omitempty"`
}

// DecideResponse is the structured result of the decide tool.
type DecideResponse struct {
	State    string                  `json:"state" jsonschema_description:"The state the decision was taken in"`
	Decision domain.Decision[string] `json:"decision" jsonschema_description:"The action and how far it can be trusted"`
}

// SimulateArgs are the arguments of the simulate tool.
type SimulateArgs struct {
	State  string `json:"state"`
	Layers *int   `json:"layers,omitempty"`
	Steps  int    `json:"steps,omitempty"`
}

// SimulateResponse is the structured result of the simulate tool.
type SimulateResponse struct {
	Trace   []DecideResponse `json:"trace" jsonschema_description:"Every decision taken, in order"`
	Final   string           `json:"final" jsonschema_description:"The state the run stopped in"`
	Stopped string           `json:"stopped" jsonschema_description:"Why the run stopped: update_requested, fixed_point or max_steps"`
}

// Server exposes a scenario agent as an MCP server, so that another agent can ask
// it for checked decisions.
type Server struct {
	scenario  *scenario.Scenario
	agent     *safetylayers.Agent[string, string]
	maxLayers int
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxLayers caps the layer count a tool call may ask for (default
// safetylayers.DefaultMaxLayers). n <= 0 removes the cap.
func WithMaxLayers(n int) Option {
	return func(s *Server) {
		s.maxLayers = n
	}
}

// NewServer creates a new MCP Server instance for sc. The agent decides with the
// scenario's layer count unless a tool call asks for another.
func NewServer(sc *scenario.Scenario, agent *safetylayers.Agent[string, string], opts ...Option) *Server {
	s := &Server{
		scenario:  sc,
		agent:     agent,
		maxLayers: safetylayers.DefaultMaxLayers,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("safetylayers-mcp", strings.TrimSpace(safetylayers.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	decideTool := mcp.NewTool("decide",
		mcp.WithDescription("Decide in a scenario state and check the decision with safety layers."),
		mcp.WithString("state", mcp.Required(), mcp.Description("The scenario state to decide in")),
		mcp.WithNumber("layers", mcp.Description("Number of safety layers (defaults to the scenario's)")),
		mcp.WithOutputSchema[DecideResponse](),
	)
	s.mcpServer.AddTool(decideTool, mcp.NewStructuredToolHandler(s.handleDecide))

	simulateTool := mcp.NewTool("simulate",
		mcp.WithDescription("Decide and act repeatedly until a decision is not confirmed or the state stops changing."),
		mcp.WithString("state", mcp.Description("The state to start from (defaults to the scenario's start)")),
		mcp.WithNumber("layers", mcp.Description("Number of safety layers (defaults to the scenario's)")),
		mcp.WithNumber("steps", mcp.Description("Maximum number of steps (default 100)")),
		mcp.WithOutputSchema[SimulateResponse](),
	)
	s.mcpServer.AddTool(simulateTool, mcp.NewStructuredToolHandler(s.handleSimulate))

	s.mcpServer.AddTool(mcp.NewTool("list_states",
		mcp.WithDescription("List the states defined by the scenario."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.scenario.States())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) agentFor(layers *int) (*safetylayers.Agent[string, string], error) {
	if layers == nil {
		return s.agent, nil
	}
	if err := safetylayers.CheckLayers(*layers, s.maxLayers); err != nil {
		return nil, err
	}
	return s.agent.WithDepth(*layers)
}

func (s *Server) handleDecide(ctx context.Context, request mcp.CallToolRequest, args DecideArgs) (DecideResponse, error) {
	if !s.scenario.Knows(args.State) {
		return DecideResponse{}, fmt.Errorf("state %q: %w", args.State, domain.ErrUnknownState)
	}
	agent, err := s.agentFor(args.Layers)
	if err != nil {
		return DecideResponse{}, err
	}
	return DecideResponse{
		State:    args.State,
		Decision: agent.Decide(ctx, args.State),
	}, nil
}

func (s *Server) handleSimulate(ctx context.Context, request mcp.CallToolRequest, args SimulateArgs) (SimulateResponse, error) {
	state := args.State
	if state == "" {
		state = s.scenario.Start
	}
	if !s.scenario.Knows(state) {
		return SimulateResponse{}, fmt.Errorf("state %q: %w", state, domain.ErrUnknownState)
	}
	agent, err := s.agentFor(args.Layers)
	if err != nil {
		return SimulateResponse{}, err
	}

	run, err := scenario.Simulate(ctx, s.scenario, agent, state, args.Steps)
	if err != nil {
		return SimulateResponse{}, err
	}

	resp := SimulateResponse{
		Trace:   make([]DecideResponse, 0, len(run.Steps)),
		Final:   run.Final,
		Stopped: string(run.Stopped),
	}
	for _, step := range run.Steps {
		resp.Trace = append(resp.Trace, DecideResponse{State: step.State, Decision: step.Decision})
	}
	return resp, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(scenarioURI, "Scenario Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.scenario)
		if err != nil {
			return nil, fmt.Errorf("failed to encode scenario: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      scenarioURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
