package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FallbackHandler is the single recovery path for every failed step: it
// reports the failure to the tool process and phrases a corrective turn for
// the model.
type FallbackHandler struct {
	tools    Tools
	recorder *Recorder
	logger   *zap.Logger
}

func NewFallbackHandler(tools Tools, recorder *Recorder, logger *zap.Logger) *FallbackHandler {
	return &FallbackHandler{tools: tools, recorder: recorder, logger: loggerOrNop(logger)}
}

// Handle reports a failed step and returns the corrective user turn to append.
func (h *FallbackHandler) Handle(ctx context.Context, step, message string) string {
	h.Report(ctx, fmt.Sprintf("Error in step: %s\nError details: %s", step, message))
	return fmt.Sprintf("An error occurred: %s. Please reconsider this step or try an alternative approach.", message)
}

// Report sends description to fallback_reasoning without producing a turn.
// It is used where the loop keeps its usual follow-up, such as a failed
// verification or a self-check concern. A failing call is only logged.
func (h *FallbackHandler) Report(ctx context.Context, description string) {
	if err := h.tools.FallbackReasoning(ctx, description); err != nil {
		h.logger.Warn("fallback_reasoning failed", zap.String("description", description), zap.Error(err))
	}
	h.recorder.Add(EventFallback, description)
}
