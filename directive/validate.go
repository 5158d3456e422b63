package directive

import (
	"encoding/json"
	"strings"
)

// ValidationResult is the outcome of Validate. Call is set only when OK is true.
type ValidationResult struct {
	OK      bool
	Call    *FunctionCall
	Message string
}

// Validate checks that line is a canonical JSON function call with a string
// "name" and an object "args". It has no side effects and never panics.
func Validate(line string) ValidationResult {
	call, verr := validateCall(line)
	if verr != nil {
		return ValidationResult{Message: verr.Message}
	}
	return ValidationResult{OK: true, Call: call, Message: "Valid function call"}
}

func validateCall(line string) (*FunctionCall, *ValidationError) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, FunctionCallPrefix) {
		return nil, newValidationError(KindMissingPrefix, "Response must start with '%s'", FunctionCallPrefix)
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, FunctionCallPrefix))

	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, newValidationError(KindNotJSON, "Invalid JSON format: %v", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, newValidationError(KindNotObject, "Function call must be a JSON object")
	}

	nameVal, ok := obj["name"]
	if !ok {
		return nil, newValidationError(KindMissingName, "Missing required field: 'name'")
	}
	name, ok := nameVal.(string)
	if !ok {
		return nil, newValidationError(KindWrongType, "Field 'name' must be a string")
	}

	argsVal, ok := obj["args"]
	if !ok {
		return nil, newValidationError(KindMissingArgs, "Missing required field: 'args'")
	}
	args, ok := argsVal.(map[string]any)
	if !ok {
		return nil, newValidationError(KindWrongType, "Field 'args' must be an object")
	}

	return &FunctionCall{Name: name, Args: args}, nil
}
