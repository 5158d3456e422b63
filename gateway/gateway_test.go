package gateway

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cot-calculator/directive"
	"cot-calculator/toolserver"
)

func connect(t *testing.T, srv *server.MCPServer) *Gateway {
	t.Helper()

	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	g, err := New(context.Background(), c, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func newToolGateway(t *testing.T) (*Gateway, *bytes.Buffer) {
	var display bytes.Buffer
	ts := toolserver.New(toolserver.Options{Logger: zaptest.NewLogger(t), Display: &display})
	return connect(t, ts.MCPServer()), &display
}

func TestGatewayCalculate(t *testing.T) {
	g, _ := newToolGateway(t)

	got, err := g.Calculate(context.Background(), "(23 + 7) * (15 - 8)")
	require.NoError(t, err)
	assert.Equal(t, "210", got)
}

func TestGatewayCalculateToolError(t *testing.T) {
	g, _ := newToolGateway(t)

	_, err := g.Calculate(context.Background(), "1 / 0")
	var terr *ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, directive.OpCalculate, terr.Op)
	assert.Contains(t, terr.Error(), "division by zero")
}

func TestGatewayVerify(t *testing.T) {
	g, _ := newToolGateway(t)
	ctx := context.Background()

	got, err := g.Verify(ctx, "23 + 7", 30)
	require.NoError(t, err)
	assert.False(t, IsFalse(got))

	got, err = g.Verify(ctx, "23 + 7", 31)
	require.NoError(t, err)
	assert.True(t, IsFalse(got))
}

func TestGatewayShowReasoningAndFallback(t *testing.T) {
	g, display := newToolGateway(t)
	ctx := context.Background()

	err := g.ShowReasoning(ctx, []directive.Step{
		{Label: "arithmetic", Text: "23 + 7 = 30"},
		{Text: "multiply"},
	})
	require.NoError(t, err)

	require.NoError(t, g.FallbackReasoning(ctx, "Error in step: x\nError details: y"))

	out := display.String()
	assert.Contains(t, out, "[Arithmetic] 23 + 7 = 30")
	assert.Contains(t, out, "2. multiply")
	assert.Contains(t, out, "Error details: y")
}

func TestGatewayEmptyResult(t *testing.T) {
	srv := server.NewMCPServer("empty", "0.0.0", server.WithToolCapabilities(true))
	srv.AddTool(mcp.NewTool(directive.OpCalculate, mcp.WithString("expression")),
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{}, nil
		})
	g := connect(t, srv)

	_, err := g.Calculate(context.Background(), "1 + 1")
	var terr *ToolError
	require.ErrorAs(t, err, &terr)
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestGatewayUnknownTool(t *testing.T) {
	srv := server.NewMCPServer("bare", "0.0.0", server.WithToolCapabilities(true))
	g := connect(t, srv)

	_, err := g.Verify(context.Background(), "1 + 1", 2)
	var terr *ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, directive.OpVerify, terr.Op)
}

func TestOpenRejectsMissingCommand(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	require.Error(t, err)

	_, err = Open(context.Background(), Options{Command: "/nonexistent/cot-tools"})
	require.Error(t, err)
}

func TestIsFalse(t *testing.T) {
	for _, s := range []string{"false", "False", " FALSE \n"} {
		assert.True(t, IsFalse(s), s)
	}
	for _, s := range []string{"True", "true", "", "no", "falsey"} {
		assert.False(t, IsFalse(s), s)
	}
}
