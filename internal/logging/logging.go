// Package logging wraps zap into the field-keyed logger used across Edison's
// components. Every call site logs through structured fields (task_id,
// session_id, round, validator) rather than formatted strings, so log lines
// stay greppable and machine-parseable in the process-events stream (§6).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the Edison-wide structured logger. It is a thin alias over
// zap.SugaredLogger so call sites can pass loose key/value pairs without
// constructing zap.Field values by hand.
type Logger = zap.SugaredLogger

// New builds a Logger writing leveled JSON to stderr. level is one of
// "debug", "info", "warn", "error" (see internal/config.LogConfig); an
// unrecognized level falls back to "info".
func New(level string, component string) *Logger {
	zl := zapcore.InfoLevel
	switch level {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		zl,
	)

	base := zap.New(core).Sugar().With("component", component)
	return base
}

// Noop returns a logger that discards everything, for tests that don't
// assert on log output.
func Noop() *Logger {
	return zap.NewNop().Sugar()
}
