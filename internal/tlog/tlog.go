// Package tlog is the thin zap wrapper internal/traversal and
// internal/aggregate log diagnostics through: unknown extend groups,
// ignored "extend" in flatten mode, circular aggregate references. Default
// construction is a no-op logger so embedding the engine in a host that
// never configures logging costs nothing.
package tlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger adapts *zap.SugaredLogger to the small Warnf-shaped interfaces
// internal/traversal.Logger and internal/aggregate.Logger expect.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Noop returns a Logger that discards everything.
func Noop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// New builds a Logger over core, which decides the output and level.
func New(core zapcore.Core) *Logger {
	return &Logger{sugar: zap.New(core).Sugar()}
}

// NewFileRotating builds a Logger that rotates its output through
// lumberjack, for long-running hosts that embed the engine as a service.
func NewFileRotating(path string, maxSizeMB, maxBackups, maxAgeDays int) *Logger {
	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), ws, zapcore.InfoLevel)
	return New(core)
}

func (l *Logger) Warnf(format string, args ...any) { l.sugar.Warnf(format, args...) }
func (l *Logger) Infof(format string, args ...any) { l.sugar.Infof(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }
func (l *Logger) Sync() error { return l.sugar.Sync() }
