package redact

import "github.com/sirupsen/logrus"

// Logger forwards to an underlying logrus logger after redacting the message
// and every field.
type Logger struct {
	base logrus.FieldLogger
}

// NewLogger wraps base.
func NewLogger(base logrus.FieldLogger) *Logger {
	return &Logger{base: base}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields logrus.Fields) {
	l.base.WithFields(Fields(fields)).Debug(String(msg))
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields logrus.Fields) {
	l.base.WithFields(Fields(fields)).Info(String(msg))
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields logrus.Fields) {
	l.base.WithFields(Fields(fields)).Warn(String(msg))
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields logrus.Fields) {
	l.base.WithFields(Fields(fields)).Error(String(msg))
}

// Hook redacts every entry of the logger it is added to.
type Hook struct{}

// Levels implements logrus.Hook.
func (Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (Hook) Fire(entry *logrus.Entry) error {
	entry.Message = String(entry.Message)
	entry.Data = Fields(entry.Data)

	return nil
}
