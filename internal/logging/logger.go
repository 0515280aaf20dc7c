// Package logging owns logger construction for the pipeline. Every stage
// and store receives a *zap.Logger from here; nothing logs through a global.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Development mode (the default for hand-run
// backfills) gets colored console output at debug level; production runs
// emit JSON with ISO8601 timestamps for the log aggregator. Sampling stays
// off in both modes: stage runs are short-lived batch jobs and per-article
// warnings must all land.
func New(development bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	encoding := "json"
	encCfg := zap.NewProductionEncoderConfig()
	if development {
		level = zap.DebugLevel
		encoding = "console"
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      development,
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ForStage returns a child logger that tags every entry with the pipeline
// stage name, so interleaved runs stay attributable.
func ForStage(logger *zap.Logger, stage string) *zap.Logger {
	return logger.With(zap.String("stage", stage))
}
