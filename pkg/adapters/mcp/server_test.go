package mcp

import (
	"context"
	"testing"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sc, err := scenario.Load("../../scenario/testdata/crossing.yaml")
	require.NoError(t, err)
	agent, err := sc.Agent()
	require.NoError(t, err)
	return NewServer(sc, agent)
}

func intPtr(n int) *int { return &n }

func TestHandleDecide(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleDecide(ctx, mcp.CallToolRequest{}, DecideArgs{State: "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", resp.State)
	assert.Equal(t, "go", resp.Decision.Action)
	assert.Equal(t, domain.UpdateRequested, resp.Decision.Outcome)
	assert.Equal(t, 1, resp.Decision.DisagreementLayer)

	resp, err = s.handleDecide(ctx, mcp.CallToolRequest{}, DecideArgs{State: "A", Layers: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, domain.Confirmed, resp.Decision.Outcome)
	assert.Equal(t, 0, resp.Decision.Layers)

	_, err = s.handleDecide(ctx, mcp.CallToolRequest{}, DecideArgs{State: "Z"})
	assert.ErrorIs(t, err, domain.ErrUnknownState)

	_, err = s.handleDecide(ctx, mcp.CallToolRequest{}, DecideArgs{State: "A", Layers: intPtr(-1)})
	assert.ErrorIs(t, err, domain.ErrNegativeDepth)
}

func TestHandleSimulate(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.handleSimulate(context.Background(), mcp.CallToolRequest{}, SimulateArgs{State: "B"})
	require.NoError(t, err)

	// B: go is confirmed (A also goes) and leads to C, where stop is a fixed point.
	require.Len(t, resp.Trace, 2)
	assert.Equal(t, "B", resp.Trace[0].State)
	assert.Equal(t, "C", resp.Trace[1].State)
	assert.Equal(t, "stop", resp.Trace[1].Decision.Action)
	assert.Equal(t, "C", resp.Final)
	assert.Equal(t, string(scenario.StoppedFixedPoint), resp.Stopped)

	resp, err = s.handleSimulate(context.Background(), mcp.CallToolRequest{}, SimulateArgs{})
	require.NoError(t, err)
	require.Len(t, resp.Trace, 1)
	assert.Equal(t, "A", resp.Final)
	assert.Equal(t, string(scenario.StoppedUpdateRequested), resp.Stopped)
}

func TestHandleDecide_MaxLayers(t *testing.T) {
	sc, err := scenario.Load("../../scenario/testdata/crossing.yaml")
	require.NoError(t, err)
	agent, err := sc.Agent()
	require.NoError(t, err)
	s := NewServer(sc, agent, WithMaxLayers(2))
	ctx := context.Background()

	resp, err := s.handleDecide(ctx, mcp.CallToolRequest{}, DecideArgs{State: "B", Layers: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Decision.Layers)

	_, err = s.handleDecide(ctx, mcp.CallToolRequest{}, DecideArgs{State: "B", Layers: intPtr(1 << 40)})
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)

	_, err = s.handleSimulate(ctx, mcp.CallToolRequest{}, SimulateArgs{Layers: intPtr(3)})
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)
}
