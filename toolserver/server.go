// Package toolserver implements the tool process: an MCP server exposing
// show_reasoning, calculate, verify and fallback_reasoning.
//
// stdout carries the protocol, so everything meant for a human is written to
// the display writer (stderr by default).
package toolserver

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cot-calculator/directive"
)

const (
	ServerName    = "cot-tools"
	ServerVersion = "1.0.0"
)

// Replies of the verify tool.
const (
	VerifyTrue  = "True"
	VerifyFalse = "False"
)

// Options configures a Server.
type Options struct {
	Logger  *zap.Logger
	Display io.Writer
	Cache   *ResultCache
}

// Server holds the tool handlers.
type Server struct {
	logger  *zap.Logger
	cache   *ResultCache
	title   cases.Caser
	mu      sync.Mutex
	display io.Writer
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	display := opts.Display
	if display == nil {
		display = os.Stderr
	}
	return &Server{
		logger:  logger,
		cache:   opts.Cache,
		title:   cases.Title(language.English),
		display: display,
	}
}

// MCPServer builds an MCP server with the four tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	srv.AddTool(mcp.NewTool(directive.OpShowReasoning,
		mcp.WithDescription("Display reasoning steps. Each step may carry a reasoning-type label such as arithmetic, logic or pattern."),
		mcp.WithArray("steps",
			mcp.Required(),
			mcp.Description("Ordered steps: strings, or objects with 'label' and 'text'"),
		),
	), s.handleShowReasoning)

	srv.AddTool(mcp.NewTool(directive.OpCalculate,
		mcp.WithDescription("Evaluate an arithmetic expression. Supports + - * / % ^, parentheses, sqrt, sin, cos, tan, log, exp, abs, floor, ceil, round, pi, e."),
		mcp.WithString("expression",
			mcp.Required(),
			mcp.Description("The expression to evaluate, e.g. '(23 + 7) * (15 - 8)'"),
		),
	), s.handleCalculate)

	srv.AddTool(mcp.NewTool(directive.OpVerify,
		mcp.WithDescription("Check whether an expression evaluates to the expected value. Replies True or False."),
		mcp.WithString("expression",
			mcp.Required(),
			mcp.Description("The expression to check"),
		),
		mcp.WithNumber("expected",
			mcp.Required(),
			mcp.Description("The value the expression should produce"),
		),
	), s.handleVerify)

	srv.AddTool(mcp.NewTool(directive.OpFallbackReasoning,
		mcp.WithDescription("Record that a step failed or looked inconsistent and that an alternative approach is being taken."),
		mcp.WithString("step_description",
			mcp.Required(),
			mcp.Description("What went wrong and in which step"),
		),
	), s.handleFallbackReasoning)

	return srv
}

func (s *Server) handleShowReasoning(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	raw, ok := args["steps"].([]any)
	if !ok {
		return mcp.NewToolResultError("steps parameter is required and must be an array"), nil
	}

	var sb strings.Builder
	sb.WriteString("Reasoning steps:\n")
	for i, item := range raw {
		var step directive.Step
		switch v := item.(type) {
		case string:
			step = directive.ParseStep(v)
		case map[string]any:
			step.Label, _ = v["label"].(string)
			step.Text, _ = v["text"].(string)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("step %d must be a string or an object", i+1)), nil
		}
		if step.Label != "" {
			fmt.Fprintf(&sb, "  %d. [%s] %s\n", i+1, s.title.String(step.Label), step.Text)
		} else {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, step.Text)
		}
	}
	s.show(ctx, directive.OpShowReasoning, sb.String())

	s.logger.Debug("reasoning shown", zap.Int("steps", len(raw)))
	return mcp.NewToolResultText(fmt.Sprintf("Displayed %d reasoning steps", len(raw))), nil
}

func (s *Server) handleCalculate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	expr, ok := args["expression"].(string)
	if !ok || strings.TrimSpace(expr) == "" {
		return mcp.NewToolResultError("expression parameter is required"), nil
	}

	key := cacheKey(directive.OpCalculate, args)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("calculate cache hit", zap.String("expression", expr))
		s.show(ctx, directive.OpCalculate, fmt.Sprintf("Calculated: %s = %s (cached)\n", expr, cached))
		return mcp.NewToolResultText(cached), nil
	}

	value, err := Evaluate(expr)
	if err != nil {
		s.logger.Info("calculation failed", zap.String("expression", expr), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("calculation error: %v", err)), nil
	}

	result := FormatResult(value)
	s.cache.Set(key, result)
	s.show(ctx, directive.OpCalculate, fmt.Sprintf("Calculated: %s = %s\n", expr, result))
	return mcp.NewToolResultText(result), nil
}

func (s *Server) handleVerify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	expr, ok := args["expression"].(string)
	if !ok || strings.TrimSpace(expr) == "" {
		return mcp.NewToolResultError("expression parameter is required"), nil
	}

	var expected float64
	switch v := args["expected"].(type) {
	case float64:
		expected = v
	case string:
		n, err := directive.ParseNumber(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("expected must be a number, got %q", v)), nil
		}
		expected = n
	default:
		return mcp.NewToolResultError("expected parameter is required and must be a number"), nil
	}

	key := cacheKey(directive.OpVerify, map[string]any{"expression": expr, "expected": expected})
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("verify cache hit", zap.String("expression", expr))
		if cached == VerifyTrue {
			s.show(ctx, directive.OpVerify, fmt.Sprintf("Verified: %s = %s (cached)\n", expr, FormatResult(expected)))
		} else {
			s.show(ctx, directive.OpVerify, fmt.Sprintf("Mismatch: %s, expected %s (cached)\n", expr, FormatResult(expected)))
		}
		return mcp.NewToolResultText(cached), nil
	}

	actual, err := Evaluate(expr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verification error: %v", err)), nil
	}

	reply := VerifyFalse
	if almostEqual(actual, expected) {
		reply = VerifyTrue
		s.show(ctx, directive.OpVerify, fmt.Sprintf("Verified: %s = %s\n", expr, FormatResult(expected)))
	} else {
		s.show(ctx, directive.OpVerify, fmt.Sprintf("Mismatch: %s = %s, expected %s\n", expr, FormatResult(actual), FormatResult(expected)))
	}
	s.cache.Set(key, reply)
	return mcp.NewToolResultText(reply), nil
}

func (s *Server) handleFallbackReasoning(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	desc, ok := args["step_description"].(string)
	if !ok || strings.TrimSpace(desc) == "" {
		return mcp.NewToolResultError("step_description parameter is required"), nil
	}

	s.show(ctx, directive.OpFallbackReasoning, fmt.Sprintf("Fallback reasoning:\n%s\n", desc))
	s.logger.Warn("fallback reasoning", zap.String("step_description", desc))
	return mcp.NewToolResultText("Fallback reasoning recorded"), nil
}

// show writes text to the display and mirrors it to the calling client as a
// log notification.
func (s *Server) show(ctx context.Context, op, text string) {
	s.mu.Lock()
	_, _ = io.WriteString(s.display, text)
	s.mu.Unlock()

	s.notify(ctx, op, strings.TrimRight(text, "\n"))
}

func almostEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-9*scale
}
