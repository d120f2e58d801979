// Package logging defines the structured-logging interface every
// vectorkeep subsystem is constructed with. It keeps the shape of the
// teacher's pkg/core/logger.go (Debug/Info/Warn/Error/With) but backs the
// default implementation with go.uber.org/zap instead of a hand-rolled
// writer.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the interface every engine subsystem accepts by constructor
// injection. There is no package-level default logger: loggers are
// engine-scoped, not static.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

// zapLogger adapts *zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger builds the default Logger backed by zap, writing JSON at the
// given minimum level.
func NewZapLogger(level zapcore.Level) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		// Config.Build only fails on a malformed encoder/sink config,
		// which NewProductionConfig never produces; fall back to a
		// no-op core rather than panic from a logging constructor.
		l = zap.NewNop()
	}
	return &zapLogger{s: l.Sugar()}
}

// NewNopLogger returns a Logger that discards everything, for tests and
// callers that don't care about log output.
func NewNopLogger() Logger {
	return &zapLogger{s: zap.NewNop().Sugar()}
}

func (z *zapLogger) Debug(msg string, keyvals ...any) { z.s.Debugw(msg, keyvals...) }
func (z *zapLogger) Info(msg string, keyvals ...any)  { z.s.Infow(msg, keyvals...) }
func (z *zapLogger) Warn(msg string, keyvals ...any)  { z.s.Warnw(msg, keyvals...) }
func (z *zapLogger) Error(msg string, keyvals ...any) { z.s.Errorw(msg, keyvals...) }

func (z *zapLogger) With(keyvals ...any) Logger {
	return &zapLogger{s: z.s.With(keyvals...)}
}
