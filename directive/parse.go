package directive

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"cot-calculator/utils"
)

// Parse classifies one trimmed line of model output.
//
// It returns a Directive, a *ParseError for an unreadable FINAL_ANSWER, a
// *ValidationError for a malformed FUNCTION_CALL, or ErrUnrecognized when the
// line carries neither marker.
func Parse(line string) (Directive, error) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, FinalAnswerPrefix):
		return parseFinalAnswer(line)
	case strings.HasPrefix(line, FunctionCallPrefix):
		return parseFunctionCall(line)
	default:
		return nil, ErrUnrecognized
	}
}

// ExtractLine picks the directive line out of a raw model response. Models
// sometimes wrap their answer in a code fence or echo the "Assistant:" role
// tag; the first line carrying a marker wins. When no line does, the whole
// trimmed response is returned.
func ExtractLine(response string) string {
	text := utils.StripCodeFences(response)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "Assistant:"))
		if strings.HasPrefix(line, FunctionCallPrefix) || strings.HasPrefix(line, FinalAnswerPrefix) {
			return line
		}
	}
	return strings.TrimSpace(text)
}

func parseFinalAnswer(line string) (Directive, error) {
	payload := strings.TrimSpace(strings.TrimPrefix(line, FinalAnswerPrefix))

	open := strings.Index(payload, "[")
	if open < 0 {
		return nil, &ParseError{Line: line, Reason: ReasonNoBrackets}
	}
	end := strings.Index(payload[open+1:], "]")
	if end < 0 {
		return nil, &ParseError{Line: line, Reason: ReasonNoBrackets}
	}
	inner := payload[open+1 : open+1+end]

	value, err := ParseNumber(inner)
	if err != nil {
		return nil, &ParseError{Line: line, Reason: ReasonNotNumeric, Detail: strconv.Quote(inner)}
	}
	return FinalAnswer{Value: value}, nil
}

func parseFunctionCall(line string) (Directive, error) {
	payload := strings.TrimSpace(strings.TrimPrefix(line, FunctionCallPrefix))

	if !strings.HasPrefix(payload, "{") {
		if name, rest, ok := strings.Cut(payload, "|"); ok {
			return parseLegacy(strings.TrimSpace(name), strings.TrimSpace(rest))
		}
	}

	call, verr := validateCall(line)
	if verr != nil {
		return nil, verr
	}
	return decodeCall(call)
}

// parseLegacy handles "show_reasoning|[...]". The payload is decoded as a JSON
// array of strings and nothing else.
func parseLegacy(name, payload string) (Directive, error) {
	if name != OpShowReasoning {
		return nil, newValidationError(KindUnsupportedLegacy,
			"Pipe-delimited form is only supported for %s, got %q; use {\"name\": ..., \"args\": {...}}", OpShowReasoning, name)
	}

	var raw []string
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		extracted := utils.ExtractJSONArray(payload)
		if extracted == "" || json.Unmarshal([]byte(extracted), &raw) != nil {
			return nil, newValidationError(KindNotJSON, "Invalid reasoning steps: %v", err)
		}
	}

	steps := make([]Step, 0, len(raw))
	for _, s := range raw {
		steps = append(steps, ParseStep(s))
	}
	return ShowReasoning{Steps: steps}, nil
}

func decodeCall(call *FunctionCall) (Directive, error) {
	switch call.Name {
	case OpShowReasoning:
		return decodeShowReasoning(call.Args)

	case OpCalculate:
		expr, verr := requireString(call.Args, OpCalculate, "expression")
		if verr != nil {
			return nil, verr
		}
		return Calculate{Expression: expr}, nil

	case OpVerify:
		expr, verr := requireString(call.Args, OpVerify, "expression")
		if verr != nil {
			return nil, verr
		}
		raw, ok := call.Args["expected"]
		if !ok {
			return nil, newValidationError(KindMissingArgument, "Missing required argument 'expected' for %s", OpVerify)
		}
		expected, err := coerceNumber(raw)
		if err != nil {
			return nil, newValidationError(KindWrongType, "Argument 'expected' must be a number, got %v", raw)
		}
		return Verify{Expression: expr, Expected: expected}, nil

	case OpFallbackReasoning, opFallbackAlias:
		for _, key := range []string{"reason", "step_description", "description"} {
			if s, ok := call.Args[key].(string); ok && strings.TrimSpace(s) != "" {
				return Fallback{Reason: s}, nil
			}
		}
		return nil, newValidationError(KindMissingArgument, "Missing required argument 'reason' for %s", OpFallbackReasoning)

	default:
		return nil, newValidationError(KindUnknownFunction, "Unknown function: %q", call.Name)
	}
}

func decodeShowReasoning(args map[string]any) (Directive, error) {
	raw, ok := args["steps"]
	if !ok {
		return nil, newValidationError(KindMissingArgument, "Missing required argument 'steps' for %s", OpShowReasoning)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, newValidationError(KindWrongType, "Argument 'steps' must be an array")
	}

	steps := make([]Step, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			steps = append(steps, ParseStep(v))
		case map[string]any:
			text, _ := v["text"].(string)
			if text == "" {
				text, _ = v["step"].(string)
			}
			label, _ := v["label"].(string)
			if label == "" {
				label, _ = v["type"].(string)
			}
			if text == "" {
				return nil, newValidationError(KindWrongType, "Step %d must have a 'text' field", i+1)
			}
			steps = append(steps, Step{Label: label, Text: text})
		default:
			return nil, newValidationError(KindWrongType, "Step %d must be a string or an object", i+1)
		}
	}
	return ShowReasoning{Steps: steps}, nil
}

func requireString(args map[string]any, op, key string) (string, *ValidationError) {
	raw, ok := args[key]
	if !ok {
		return "", newValidationError(KindMissingArgument, "Missing required argument '%s' for %s", key, op)
	}
	s, ok := raw.(string)
	if !ok {
		return "", newValidationError(KindWrongType, "Argument '%s' must be a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", newValidationError(KindMissingArgument, "Argument '%s' for %s must not be empty", key, op)
	}
	return s, nil
}

// stepLabel matches "Step 1 (arithmetic): ..." and "1. (logic) ...".
var stepLabel = regexp.MustCompile(`^\s*(?:\d+\.\s*)?(?:(?i:step)\s*\d+\s*)?\(([A-Za-z][A-Za-z \-]*)\)\s*:?\s*(.*)$`)

// ParseStep splits a reasoning step written as "Step N (label): text" into its
// label and text. Unlabelled steps keep the whole string as text.
func ParseStep(s string) Step {
	s = strings.TrimSpace(s)
	m := stepLabel.FindStringSubmatch(s)
	if m == nil || strings.TrimSpace(m[2]) == "" {
		return Step{Text: s}
	}
	return Step{Label: strings.ToLower(strings.TrimSpace(m[1])), Text: strings.TrimSpace(m[2])}
}

// ParseNumber reads a decimal number, tolerating surrounding space and
// well-formed thousands separators. NaN and infinities are rejected.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	s, ok := utils.StripThousands(s)
	if !ok {
		return 0, fmt.Errorf("misplaced comma in %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %s", s)
	}
	return v, nil
}

func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return ParseNumber(n)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
