// Package agent drives the model through the chain-of-thought protocol: it
// queries the model, parses one directive per reply, dispatches it to the
// tool process, and feeds the outcome back as the next user turn until a
// final answer arrives or the model stops answering.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cot-calculator/directive"
	"cot-calculator/gateway"
	"cot-calculator/llm"
	"cot-calculator/utils"
)

// Tools is the tool process as seen by the loop. *gateway.Gateway implements it.
type Tools interface {
	ShowReasoning(ctx context.Context, steps []directive.Step) error
	Calculate(ctx context.Context, expression string) (string, error)
	Verify(ctx context.Context, expression string, expected float64) (string, error)
	FallbackReasoning(ctx context.Context, description string) error
}

// StopReason says why a run ended.
type StopReason string

const (
	StopFinalAnswer   StopReason = "final_answer"
	StopModelTimeout  StopReason = "model_timeout"
	StopModelError    StopReason = "model_error"
	StopEmptyResponse StopReason = "empty_response"
	StopMaxTurns      StopReason = "max_turns"
	StopCancelled     StopReason = "cancelled"
)

const defaultModelTimeout = 10 * time.Second

// CalculationRecord is one successful calculate call.
type CalculationRecord struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// Result is the outcome of a run.
type Result struct {
	Transcript  []Turn
	History     []CalculationRecord
	FinalAnswer *float64
	// FinalVerified is nil when no confirming verify was issued.
	FinalVerified *bool
	StopReason    StopReason
	ModelQueries  int
	Events        []Event
}

// Options configures a Loop.
type Options struct {
	Problem      string
	SystemPrompt string // defaults to SystemPrompt

	Model llm.Provider
	Tools Tools

	ModelTimeout     time.Duration // defaults to 10s
	SelfCheckTimeout time.Duration // defaults to ModelTimeout
	MaxTurns         int           // model queries per run; 0 = unlimited
	Generate         llm.GenerateOptions // applied to loop and self-check queries

	Logger   *zap.Logger
	Observer Observer
}

// Loop runs the conversation. Each Run starts from a fresh transcript.
type Loop struct {
	opts    Options
	checker *SelfChecker
	logger  *zap.Logger
}

func NewLoop(opts Options) (*Loop, error) {
	if opts.Model == nil {
		return nil, errors.New("agent: model provider is required")
	}
	if opts.Tools == nil {
		return nil, errors.New("agent: tools are required")
	}
	if strings.TrimSpace(opts.Problem) == "" {
		return nil, errors.New("agent: problem is required")
	}
	if opts.MaxTurns < 0 {
		return nil, fmt.Errorf("agent: max turns must not be negative, got %d", opts.MaxTurns)
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	if opts.SelfCheckTimeout <= 0 {
		opts.SelfCheckTimeout = opts.ModelTimeout
	}
	logger := loggerOrNop(opts.Logger)

	return &Loop{
		opts:    opts,
		checker: NewSelfChecker(opts.Model, opts.SelfCheckTimeout, opts.Generate, logger.Named("self-check")),
		logger:  logger,
	}, nil
}

// run is the state owned by a single Run call.
type run struct {
	transcript *Transcript
	history    []CalculationRecord
	recorder   *Recorder
	fallback   *FallbackHandler

	finalAnswer   *float64
	finalVerified *bool
}

// Run drives the conversation until it terminates. Model timeouts and empty
// replies end the run without an error; only cancellation of ctx is returned
// as one, together with the partial result.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	recorder := NewRecorder(l.opts.Observer)
	st := &run{
		transcript: NewTranscript(l.opts.SystemPrompt, l.opts.Problem),
		recorder:   recorder,
		fallback:   NewFallbackHandler(l.opts.Tools, recorder, l.logger),
	}

	reason, queries, err := l.cycle(ctx, st)

	st.recorder.Add(EventStop, string(reason))
	st.recorder.Add(EventCompleted, "Calculation completed!")
	l.logger.Info("run finished",
		zap.String("stop_reason", string(reason)),
		zap.Int("model_queries", queries),
		zap.Int("calculations", len(st.history)))

	return &Result{
		Transcript:    st.transcript.Turns(),
		History:       st.history,
		FinalAnswer:   st.finalAnswer,
		FinalVerified: st.finalVerified,
		StopReason:    reason,
		ModelQueries:  queries,
		Events:        st.recorder.Events(),
	}, err
}

func (l *Loop) cycle(ctx context.Context, st *run) (StopReason, int, error) {
	queries := 0
	for {
		if err := ctx.Err(); err != nil {
			return StopCancelled, queries, err
		}
		if l.opts.MaxTurns > 0 && queries >= l.opts.MaxTurns {
			l.logger.Warn("turn limit reached", zap.Int("max_turns", l.opts.MaxTurns))
			return StopMaxTurns, queries, nil
		}

		queries++
		response, err := llm.Query(ctx, l.opts.Model, st.transcript.Text(), l.opts.ModelTimeout, l.opts.Generate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return StopCancelled, queries, ctxErr
			}
			reason := stopReasonFor(err)
			l.logger.Warn("model gave no response", zap.String("stop_reason", string(reason)), zap.Error(err))
			return reason, queries, nil
		}

		st.recorder.Add(EventModelResponse, response)
		if l.step(ctx, st, response) {
			return StopFinalAnswer, queries, nil
		}
	}
}

func stopReasonFor(err error) StopReason {
	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return StopEmptyResponse
	case errors.Is(err, context.DeadlineExceeded):
		return StopModelTimeout
	default:
		return StopModelError
	}
}

// step handles one model reply and reports whether the run is over.
func (l *Loop) step(ctx context.Context, st *run, response string) bool {
	line := directive.ExtractLine(response)
	d, err := directive.Parse(line)

	switch {
	case errors.Is(err, directive.ErrUnrecognized):
		st.recorder.Add(EventUnrecognized, response)
		st.transcript.AppendAssistant(response)
		return false

	case err != nil:
		l.logger.Info("malformed directive", zap.String("line", utils.TruncateStr(line, 200)), zap.Error(err))
		st.transcript.AppendAssistant(response)
		st.transcript.AppendUser(st.fallback.Handle(ctx, line, err.Error()))
		return false
	}

	if final, ok := d.(directive.FinalAnswer); ok {
		l.finish(ctx, st, final.Value)
		return true
	}

	st.transcript.AppendAssistant(response)
	st.transcript.AppendUser(l.dispatch(ctx, st, d))
	return false
}

// dispatch executes a tool directive and returns the follow-up user turn.
func (l *Loop) dispatch(ctx context.Context, st *run, d directive.Directive) string {
	tools := l.opts.Tools
	l.logger.Debug("dispatching directive", zap.String("op", d.Kind()))

	switch d := d.(type) {
	case directive.ShowReasoning:
		if err := tools.ShowReasoning(ctx, d.Steps); err != nil {
			return st.fallback.Handle(ctx, directive.OpShowReasoning, err.Error())
		}
		st.recorder.Add(EventReasoning, formatSteps(d.Steps))
		return FollowUpNextStep

	case directive.Calculate:
		return l.calculate(ctx, st, d.Expression)

	case directive.Verify:
		step := fmt.Sprintf("verify %s = %s", d.Expression, formatNumber(d.Expected))
		answer, err := tools.Verify(ctx, d.Expression, d.Expected)
		if err != nil {
			return st.fallback.Handle(ctx, step, err.Error())
		}
		verified := !gateway.IsFalse(answer)
		st.recorder.AddResult(EventVerification, step, verified)
		if !verified {
			st.fallback.Report(ctx, fmt.Sprintf("Verification failed: %s does not equal %s", d.Expression, formatNumber(d.Expected)))
		}
		return FollowUpVerified

	case directive.Fallback:
		if err := tools.FallbackReasoning(ctx, d.Reason); err != nil {
			return st.fallback.Handle(ctx, directive.OpFallbackReasoning, err.Error())
		}
		st.recorder.Add(EventFallback, d.Reason)
		return FollowUpFallback

	default:
		// FinalAnswer is handled by step.
		return st.fallback.Handle(ctx, d.Kind(), "unsupported directive")
	}
}

func (l *Loop) calculate(ctx context.Context, st *run, expression string) string {
	step := "calculate " + expression

	text, err := l.opts.Tools.Calculate(ctx, expression)
	if err != nil {
		return st.fallback.Handle(ctx, step, err.Error())
	}
	value, err := directive.ParseNumber(text)
	if err != nil {
		return st.fallback.Handle(ctx, step, fmt.Sprintf("result %q is not a number", text))
	}
	st.recorder.Add(EventCalculation, fmt.Sprintf("%s = %s", expression, text))

	l.selfCheck(ctx, st, expression, text)

	st.history = append(st.history, CalculationRecord{Expression: expression, Result: value})
	return followUpResult(text)
}

// selfCheck is advisory: whatever the model says, the calculation stands.
func (l *Loop) selfCheck(ctx context.Context, st *run, expression, result string) {
	reply, ok := l.checker.Check(ctx, expression, result)
	switch {
	case !ok:
		// The corrective turn is dropped; the result follow-up is sent instead.
		st.fallback.Handle(ctx, fmt.Sprintf("self-check of %s = %s", expression, result), "self-check produced no response")

	case strings.TrimSpace(reply) == SelfCheckPass:
		st.recorder.AddResult(EventSelfCheckPass, fmt.Sprintf("%s = %s", expression, result), true)

	default:
		st.recorder.Add(EventSelfCheckConcern, reply)
		st.fallback.Report(ctx, fmt.Sprintf("Self-check raised concerns about %s = %s: %s", expression, result, reply))
	}
}

// finish handles FINAL_ANSWER. The run ends whatever the confirming verify says.
func (l *Loop) finish(ctx context.Context, st *run, value float64) {
	st.finalAnswer = &value
	st.recorder.Add(EventFinalAnswer, formatNumber(value))

	if len(st.history) == 0 {
		l.logger.Info("final answer without calculations, skipping verification")
		return
	}

	answer, err := l.opts.Tools.Verify(ctx, l.opts.Problem, value)
	if err != nil {
		st.fallback.Handle(ctx, fmt.Sprintf("verify final answer %s", formatNumber(value)), err.Error())
		return
	}
	verified := !gateway.IsFalse(answer)
	st.finalVerified = &verified
	st.recorder.AddResult(EventFinalVerification, fmt.Sprintf("%s = %s", l.opts.Problem, formatNumber(value)), verified)
}

func formatSteps(steps []directive.Step) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s", i+1, s)
	}
	return strings.Join(lines, "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
