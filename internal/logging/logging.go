package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelTerse   = "terse"
	LevelVerbose = "verbose"
	LevelQuiet   = "quiet"
)

// ParseLevel maps a verbosity name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case LevelVerbose:
		return zapcore.DebugLevel, nil
	case LevelTerse, "":
		return zapcore.InfoLevel, nil
	case LevelQuiet:
		return zapcore.WarnLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want %s, %s or %s)", level, LevelTerse, LevelVerbose, LevelQuiet)
	}
}

// New creates a zap logger on stderr configured for the requested verbosity.
func New(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"
	encoderCfg.LevelKey = "level"
	encoderCfg.MessageKey = "msg"

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "console",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}
