package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cot-calculator/llm"
)

// SelfChecker asks the model whether a calculation result looks right.
type SelfChecker struct {
	model   llm.Provider
	timeout time.Duration
	opts    llm.GenerateOptions
	logger  *zap.Logger
}

func NewSelfChecker(model llm.Provider, timeout time.Duration, opts llm.GenerateOptions, logger *zap.Logger) *SelfChecker {
	return &SelfChecker{model: model, timeout: timeout, opts: opts, logger: loggerOrNop(logger)}
}

// Check returns the model's trimmed reply, or ("", false) when the query
// timed out, failed, or came back empty.
func (c *SelfChecker) Check(ctx context.Context, expression, result string) (string, bool) {
	text, err := llm.Query(ctx, c.model, selfCheckPrompt(expression, result), c.timeout, c.opts)
	if err != nil {
		c.logger.Warn("self-check produced no response",
			zap.String("expression", expression),
			zap.String("result", result),
			zap.Error(err))
		return "", false
	}
	return text, true
}
