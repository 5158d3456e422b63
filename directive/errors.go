package directive

import (
	"errors"
	"fmt"
)

// ErrUnrecognized is returned for lines that carry neither marker. Callers
// treat such lines as plain conversation.
var ErrUnrecognized = errors.New("unrecognized directive")

// Reasons reported by ParseError.
const (
	ReasonNoBrackets = "no brackets"
	ReasonNotNumeric = "not numeric"
)

// ParseError reports a FINAL_ANSWER line whose payload cannot be read.
type ParseError struct {
	Line   string
	Reason string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("malformed final answer (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("malformed final answer (%s)", e.Reason)
}

// ValidationKind classifies a structurally invalid FUNCTION_CALL.
type ValidationKind int

const (
	KindMissingPrefix ValidationKind = iota + 1
	KindNotJSON
	KindNotObject
	KindMissingName
	KindMissingArgs
	KindWrongType
	KindMissingArgument
	KindUnknownFunction
	KindUnsupportedLegacy
)

func (k ValidationKind) String() string {
	switch k {
	case KindMissingPrefix:
		return "missing prefix"
	case KindNotJSON:
		return "not JSON"
	case KindNotObject:
		return "not an object"
	case KindMissingName:
		return "missing name"
	case KindMissingArgs:
		return "missing args"
	case KindWrongType:
		return "wrong type"
	case KindMissingArgument:
		return "missing argument"
	case KindUnknownFunction:
		return "unknown function"
	case KindUnsupportedLegacy:
		return "unsupported legacy form"
	default:
		return "unknown"
	}
}

// ValidationError reports a FUNCTION_CALL line that is not a well formed call.
// Message is meant to be shown to the model verbatim.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
