// Package logger provides a small structured logging facade over logrus.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogField is a single structured key/value attached to a log entry.
type LogField struct {
	Key   string
	Value string
}

// Logger is the logging interface used throughout the service.
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
	WithFields(fields ...LogField) Logger
	WithCorrelationID(id string) Logger
}

// Config represents logger configuration.
type Config struct {
	Level   Level
	Format  string    // "json" (default) or "text"
	Service string    // added as a "service" field when set
	Output  io.Writer // defaults to os.Stdout
}

type logger struct {
	entry  *logrus.Logger
	fields []LogField
}

// NewLogger creates a logger from the given configuration.
func NewLogger(config Config) Logger {
	l := logrus.New()

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	out := config.Output
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)
	l.SetLevel(config.Level.logrusLevel())

	var base []LogField
	if config.Service != "" {
		base = append(base, StringField("service", config.Service))
	}

	return &logger{entry: l, fields: base}
}

// NewNopLogger returns a logger that discards everything. Handy in tests.
func NewNopLogger() Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// WithFields returns a child logger carrying the extra fields. The receiver is not modified.
func (l *logger) WithFields(fields ...LogField) Logger {
	merged := make([]LogField, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logger{entry: l.entry, fields: merged}
}

// WithCorrelationID returns a child logger tagged with the correlation id.
func (l *logger) WithCorrelationID(id string) Logger {
	return l.WithFields(CorrelationIDField(id))
}

func (l *logger) Debug(msg string, fields ...LogField) { l.log(logrus.DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...LogField)  { l.log(logrus.InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...LogField)  { l.log(logrus.WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...LogField) { l.log(logrus.ErrorLevel, msg, fields) }

func (l *logger) log(level logrus.Level, msg string, fields []LogField) {
	if !l.entry.IsLevelEnabled(level) {
		return
	}

	data := make(logrus.Fields, len(l.fields)+len(fields))
	for _, f := range l.fields {
		data[f.Key] = f.Value
	}
	for _, f := range fields {
		data[f.Key] = f.Value
	}

	l.entry.WithFields(data).Log(level, msg)
}
