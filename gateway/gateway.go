// Package gateway is the agent's side of the tool process. It speaks MCP to a
// cot-tools subprocess over stdio and turns every failure into a *ToolError.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"cot-calculator/directive"
)

const (
	clientName    = "cot-calculator"
	clientVersion = "1.0.0"
)

// ErrNoResult is wrapped in a ToolError when a tool answers with no text.
var ErrNoResult = errors.New("no result")

// ToolError reports a failed tool call: a transport failure, an error result
// from the tool, or an empty answer.
type ToolError struct {
	Op  string
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// IsFalse reports whether a verify answer is the boolean false.
func IsFalse(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "false")
}

// Options describes the tool process to launch.
type Options struct {
	Command string
	Args    []string
	Env     []string

	// Stderr receives the child's stderr. Defaults to os.Stderr.
	Stderr io.Writer
	Logger *zap.Logger
}

// Gateway is a connected tool session. Calls are serialised.
type Gateway struct {
	client *client.Client
	logger *zap.Logger

	mu      sync.Mutex
	drained sync.WaitGroup
	closed  atomic.Bool
}

// Open launches the tool process and completes the MCP handshake.
func Open(ctx context.Context, opts Options) (*Gateway, error) {
	if opts.Command == "" {
		return nil, errors.New("gateway: no tool command configured")
	}

	c, err := client.NewStdioMCPClient(opts.Command, opts.Env, opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("start tool process %q: %w", opts.Command, err)
	}

	g := &Gateway{client: c, logger: loggerOrNop(opts.Logger)}

	// The child blocks once its stderr pipe fills up, so it is always drained.
	if stderr, ok := client.GetStderr(c); ok {
		dst := opts.Stderr
		if dst == nil {
			dst = os.Stderr
		}
		g.drained.Add(1)
		go func() {
			defer g.drained.Done()
			_, _ = io.Copy(dst, stderr)
		}()
	}

	if err := g.initialize(ctx); err != nil {
		_ = g.Close()
		return nil, err
	}
	g.logger.Info("tool process ready", zap.String("command", opts.Command), zap.Strings("args", opts.Args))
	return g, nil
}

// New wraps a client that has already been started, for example an
// in-process client, and performs the MCP handshake.
func New(ctx context.Context, c *client.Client, logger *zap.Logger) (*Gateway, error) {
	g := &Gateway{client: c, logger: loggerOrNop(logger)}
	if err := g.initialize(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}

	res, err := g.client.Initialize(ctx, req)
	if err != nil {
		return fmt.Errorf("initialize tool session: %w", err)
	}
	g.logger.Debug("tool session initialized",
		zap.String("server", res.ServerInfo.Name),
		zap.String("version", res.ServerInfo.Version))

	g.subscribe(ctx)
	return nil
}

// subscribe forwards the server's log notifications to the debug log. The
// server only sends them once a level has been requested, so nothing is
// requested unless debug logging is on.
func (g *Gateway) subscribe(ctx context.Context) {
	if !g.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	g.client.OnNotification(func(n mcp.JSONRPCNotification) {
		if g.closed.Load() {
			return
		}
		g.logger.Debug("tool notification",
			zap.String("method", n.Method),
			zap.Any("params", n.Params.AdditionalFields))
	})

	req := mcp.SetLevelRequest{}
	req.Params.Level = mcp.LoggingLevelDebug
	if err := g.client.SetLevel(ctx, req); err != nil {
		g.logger.Debug("tool server does not accept a log level", zap.Error(err))
	}
}

// Close shuts the session down and waits for the stderr drain to finish.
func (g *Gateway) Close() error {
	g.closed.Store(true)
	err := g.client.Close()
	g.drained.Wait()
	return err
}

// ShowReasoning sends the steps for display.
func (g *Gateway) ShowReasoning(ctx context.Context, steps []directive.Step) error {
	items := make([]any, 0, len(steps))
	for _, s := range steps {
		item := map[string]any{"text": s.Text}
		if s.Label != "" {
			item["label"] = s.Label
		}
		items = append(items, item)
	}
	_, err := g.call(ctx, directive.OpShowReasoning, map[string]any{"steps": items}, false)
	return err
}

// Calculate returns the tool's textual result for expr.
func (g *Gateway) Calculate(ctx context.Context, expr string) (string, error) {
	return g.call(ctx, directive.OpCalculate, map[string]any{"expression": expr}, true)
}

// Verify returns the tool's raw answer; see IsFalse.
func (g *Gateway) Verify(ctx context.Context, expr string, expected float64) (string, error) {
	return g.call(ctx, directive.OpVerify, map[string]any{"expression": expr, "expected": expected}, true)
}

// FallbackReasoning records a recovery step with the tool process.
func (g *Gateway) FallbackReasoning(ctx context.Context, description string) error {
	_, err := g.call(ctx, directive.OpFallbackReasoning, map[string]any{"step_description": description}, false)
	return err
}

func (g *Gateway) call(ctx context.Context, op string, args map[string]any, needText bool) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req := mcp.CallToolRequest{}
	req.Params.Name = op
	req.Params.Arguments = args

	res, err := g.client.CallTool(ctx, req)
	if err != nil {
		g.logger.Warn("tool call failed", zap.String("op", op), zap.Error(err))
		return "", &ToolError{Op: op, Err: err}
	}
	if res == nil {
		return "", &ToolError{Op: op, Err: ErrNoResult}
	}

	text := firstText(res)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		g.logger.Debug("tool returned error", zap.String("op", op), zap.String("message", text))
		return "", &ToolError{Op: op, Err: errors.New(text)}
	}
	if needText && strings.TrimSpace(text) == "" {
		return "", &ToolError{Op: op, Err: ErrNoResult}
	}
	return strings.TrimSpace(text), nil
}

func firstText(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			return tc.Text
		}
	}
	return ""
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
