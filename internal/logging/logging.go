// Package logging provides the structured logger used across log-archiver.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the logging sink handed to every component. Args are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) Logger {
	return zapLogger{s: l.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return FromZap(zap.NewNop())
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

func (l zapLogger) With(args ...any) Logger {
	return zapLogger{s: l.s.With(args...)}
}
