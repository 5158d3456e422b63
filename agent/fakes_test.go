package agent

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"cot-calculator/directive"
	"cot-calculator/gateway"
	"cot-calculator/llm"
	"cot-calculator/toolserver"
)

// callLog records model queries and tool calls in the order they happen.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// scriptedModel answers loop queries from a script and self-check queries
// with a fixed reply. An exhausted script answers with empty text.
type scriptedModel struct {
	mu        sync.Mutex
	log       *callLog
	replies   []string
	selfCheck string
	prompts   []string
	opts      []llm.GenerateOptions
	block     bool
	err       error
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = append(m.opts, opts)

	if strings.HasPrefix(prompt, "Given the calculation:") {
		m.log.add("self-check")
		return m.selfCheck, nil
	}

	m.log.add("model")
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type verifyCall struct {
	Expression string
	Expected   float64
}

// fakeTools evaluates expressions locally and records every call.
type fakeTools struct {
	log *callLog

	calcErr      error
	calcResult   string
	verifyAnswer string
	verifyErr    error
	showErr      error
	fallbackErr  error

	steps     [][]directive.Step
	calcs     []string
	verifies  []verifyCall
	fallbacks []string
}

func (f *fakeTools) ShowReasoning(ctx context.Context, steps []directive.Step) error {
	f.log.add("show_reasoning")
	if f.showErr != nil {
		return &gateway.ToolError{Op: directive.OpShowReasoning, Err: f.showErr}
	}
	f.steps = append(f.steps, steps)
	return nil
}

func (f *fakeTools) Calculate(ctx context.Context, expression string) (string, error) {
	f.log.add("calculate")
	f.calcs = append(f.calcs, expression)
	if f.calcErr != nil {
		return "", &gateway.ToolError{Op: directive.OpCalculate, Err: f.calcErr}
	}
	if f.calcResult != "" {
		return f.calcResult, nil
	}
	v, err := toolserver.Evaluate(expression)
	if err != nil {
		return "", &gateway.ToolError{Op: directive.OpCalculate, Err: err}
	}
	return toolserver.FormatResult(v), nil
}

func (f *fakeTools) Verify(ctx context.Context, expression string, expected float64) (string, error) {
	f.log.add("verify")
	f.verifies = append(f.verifies, verifyCall{Expression: expression, Expected: expected})
	if f.verifyErr != nil {
		return "", &gateway.ToolError{Op: directive.OpVerify, Err: f.verifyErr}
	}
	if f.verifyAnswer != "" {
		return f.verifyAnswer, nil
	}
	v, err := toolserver.Evaluate(expression)
	if err != nil {
		return "", &gateway.ToolError{Op: directive.OpVerify, Err: err}
	}
	if math.Abs(v-expected) < 1e-9 {
		return toolserver.VerifyTrue, nil
	}
	return toolserver.VerifyFalse, nil
}

func (f *fakeTools) FallbackReasoning(ctx context.Context, description string) error {
	f.log.add("fallback_reasoning")
	f.fallbacks = append(f.fallbacks, description)
	if f.fallbackErr != nil {
		return &gateway.ToolError{Op: directive.OpFallbackReasoning, Err: f.fallbackErr}
	}
	return nil
}

var errToolDown = errors.New("tool process exited")
