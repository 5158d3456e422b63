// Package directive turns single lines of model output into typed protocol directives.
//
// The model speaks one directive per turn:
//
//	FUNCTION_CALL: {"name": "<op>", "args": {...}}
//	FUNCTION_CALL: show_reasoning|["<step1>", "<step2>"]
//	FINAL_ANSWER: [<number>]
//
// Anything else is conversational text and is reported as ErrUnrecognized.
package directive

import "fmt"

// Line markers recognised by the parser.
const (
	FunctionCallPrefix = "FUNCTION_CALL:"
	FinalAnswerPrefix  = "FINAL_ANSWER:"
)

// Operation names exposed by the tool process.
const (
	OpShowReasoning     = "show_reasoning"
	OpCalculate         = "calculate"
	OpVerify            = "verify"
	OpFallbackReasoning = "fallback_reasoning"

	// opFallbackAlias is the short name used in the system prompt.
	opFallbackAlias = "fallback"
)

// KindFinalAnswer is the Kind of a FinalAnswer directive.
const KindFinalAnswer = "final_answer"

// Directive is one parsed instruction from the model. The set of
// implementations is closed: ShowReasoning, Calculate, Verify, Fallback and
// FinalAnswer.
type Directive interface {
	// Kind returns the operation name, or KindFinalAnswer.
	Kind() string
	sealed()
}

// Step is one labelled reasoning step.
type Step struct {
	Label string `json:"label,omitempty"`
	Text  string `json:"text"`
}

func (s Step) String() string {
	if s.Label == "" {
		return s.Text
	}
	return fmt.Sprintf("(%s) %s", s.Label, s.Text)
}

// ShowReasoning asks the tool process to display the model's plan.
type ShowReasoning struct {
	Steps []Step
}

// Calculate asks the tool process to evaluate an expression.
type Calculate struct {
	Expression string
}

// Verify asks the tool process to check that Expression evaluates to Expected.
type Verify struct {
	Expression string
	Expected   float64
}

// Fallback is an explicit request from the model to record a recovery step.
type Fallback struct {
	Reason string
}

// FinalAnswer ends the conversation.
type FinalAnswer struct {
	Value float64
}

func (ShowReasoning) Kind() string { return OpShowReasoning }
func (Calculate) Kind() string     { return OpCalculate }
func (Verify) Kind() string        { return OpVerify }
func (Fallback) Kind() string      { return OpFallbackReasoning }
func (FinalAnswer) Kind() string   { return KindFinalAnswer }

func (ShowReasoning) sealed() {}
func (Calculate) sealed()     {}
func (Verify) sealed()        {}
func (Fallback) sealed()      {}
func (FinalAnswer) sealed()   {}

// FunctionCall is the structurally validated JSON form of a FUNCTION_CALL line,
// before its arguments are checked against a specific operation.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}
