// Package logging provides the logrus-backed implementation of the
// domain's Logger interface.
package logging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sogos/mirai-scheduler/internal/domain/service"
)

// Logger wraps a logrus.Entry to satisfy service.Logger.
type Logger struct {
	entry *logrus.Entry
}

// New creates a new structured logger with JSON output at info level.
func New() *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{entry: logrus.NewEntry(l)}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Debug(msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Info(msg)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Warn(msg)
}

func (l *Logger) Error(msg string, args ...any) {
	l.entry.WithFields(fieldsFrom(args)).Error(msg)
}

func (l *Logger) With(args ...any) service.Logger {
	return &Logger{entry: l.entry.WithFields(fieldsFrom(args))}
}

func (l *Logger) WithContext(ctx context.Context) service.Logger {
	return &Logger{entry: l.entry.WithContext(ctx)}
}

// fieldsFrom converts a flat key/value arg list (as passed by callers in
// the style of slog.Logger) into logrus.Fields, skipping a trailing
// unpaired key.
func fieldsFrom(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}
