// Package logging provides the structured logging seam every engine
// component depends on instead of reaching for logrus directly.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the contract engine code logs through. Components accept
// a Logger, never a concrete logrus type, so tests can swap in a
// recording implementation.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds the production Logger, formatting entries as JSON and
// writing to w (os.Stdout in normal operation).
func New(level string, w io.Writer) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(w)
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// Default returns a Logger writing info-level JSON to stdout.
func Default() Logger {
	return New("info", os.Stdout)
}

func (l *logrusLogger) Debug(msg string, fields ...interface{}) {
	l.withFields(fields).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields ...interface{}) {
	l.withFields(fields).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields ...interface{}) {
	l.withFields(fields).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields ...interface{}) {
	l.withFields(fields).Error(msg)
}

func (l *logrusLogger) Fatal(msg string, fields ...interface{}) {
	l.withFields(fields).Fatal(msg)
}

func (l *logrusLogger) With(fields ...interface{}) Logger {
	return &logrusLogger{entry: l.withFields(fields)}
}

// withFields turns a flat key, value, key, value... slice into a
// logrus.Fields entry, dropping a trailing unpaired key.
func (l *logrusLogger) withFields(fields []interface{}) *logrus.Entry {
	if len(fields) == 0 {
		return l.entry
	}
	f := make(logrus.Fields, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		f[key] = fields[i+1]
	}
	return l.entry.WithFields(f)
}
