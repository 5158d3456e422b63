package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, atom, err := NewLogger("debug")
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zapcore.DebugLevel, atom.Level())

	require.NoError(t, SetLevel(atom, "warn"))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, SetLevel(atom, ""))
	assert.Equal(t, zapcore.InfoLevel, atom.Level())
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, _, err := NewLogger("chatty")
	assert.ErrorContains(t, err, `invalid log level "chatty"`)
}
