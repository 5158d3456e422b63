package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFallbackHandler(t *testing.T) {
	tools := &fakeTools{log: &callLog{}}
	rec := NewRecorder(nil)
	h := NewFallbackHandler(tools, rec, nil)

	turn := h.Handle(context.Background(), "calculate 1 / 0", "division by zero")

	assert.Equal(t, "An error occurred: division by zero. Please reconsider this step or try an alternative approach.", turn)
	assert.Equal(t, []string{"Error in step: calculate 1 / 0\nError details: division by zero"}, tools.fallbacks)
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventFallback, events[0].Type)
}

func TestFallbackHandlerLogsToolFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tools := &fakeTools{log: &callLog{}, fallbackErr: errToolDown}
	h := NewFallbackHandler(tools, nil, zap.New(core))

	turn := h.Handle(context.Background(), "verify 1 = 2", "mismatch")

	assert.Contains(t, turn, "An error occurred: mismatch.")
	entries := logs.FilterMessage("fallback_reasoning failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Error in step: verify 1 = 2\nError details: mismatch", entries[0].ContextMap()["description"])
}

func TestFallbackReportProducesNoTurn(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tools := &fakeTools{log: &callLog{}, fallbackErr: errToolDown}
	rec := NewRecorder(nil)
	h := NewFallbackHandler(tools, rec, zap.New(core))

	h.Report(context.Background(), "Verification failed: 1 + 1 does not equal 3")

	assert.Equal(t, []string{"Verification failed: 1 + 1 does not equal 3"}, tools.fallbacks)
	assert.Equal(t, 1, logs.FilterMessage("fallback_reasoning failed").Len())
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventFallback, events[0].Type)
}
