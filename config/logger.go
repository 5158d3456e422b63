package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production JSON logger on stderr. Stdout belongs to
// the console renderer in cot and to the stdio transport in cot-tools. The
// returned level can be raised or lowered after the config is loaded.
func NewLogger(level string) (*zap.Logger, zap.AtomicLevel, error) {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if err := SetLevel(atom, level); err != nil {
		return nil, atom, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, atom, fmt.Errorf("build logger: %w", err)
	}
	return logger, atom, nil
}

// SetLevel parses a level name ("debug", "info", ...). Empty means info.
func SetLevel(atom zap.AtomicLevel, level string) error {
	if level == "" {
		atom.SetLevel(zapcore.InfoLevel)
		return nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	atom.SetLevel(l)
	return nil
}
