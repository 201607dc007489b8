// internal/utils/logger.go

package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger defines the interface for logging throughout the application.
type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...interface{})
	Info(msg string)
	Infof(format string, args ...interface{})
	Warn(msg string)
	Warnf(format string, args ...interface{})
	Error(msg string)
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLogLevel maps a configuration string to a LogLevel. Unknown values
// fall back to InfoLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Shared handler state. Component loggers are created at package init time,
// so the level and sink must be adjustable after the fact.
var (
	levelVar                 = new(slog.LevelVar)
	handlerMu                sync.RWMutex
	rootHandler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
)

// SetLevel changes the minimum level for every logger in the process.
func SetLevel(level LogLevel) {
	levelVar.Set(level.slogLevel())
}

// SetOutput replaces the log sink. When jsonFormat is true records are written
// as JSON objects, otherwise as key=value text.
func SetOutput(w io.Writer, jsonFormat bool) {
	opts := &slog.HandlerOptions{Level: levelVar}
	handlerMu.Lock()
	defer handlerMu.Unlock()
	if jsonFormat {
		rootHandler = slog.NewJSONHandler(w, opts)
	} else {
		rootHandler = slog.NewTextHandler(w, opts)
	}
}

func currentHandler() slog.Handler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return rootHandler
}

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	fields map[string]interface{}
}

// NewComponentLogger creates a logger tagged with the component name.
func NewComponentLogger(component string) Logger {
	return &SlogLogger{fields: map[string]interface{}{"component": component}}
}

func (l *SlogLogger) Debug(msg string) {
	l.log(DebugLevel, msg)
}

func (l *SlogLogger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Info(msg string) {
	l.log(InfoLevel, msg)
}

func (l *SlogLogger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Warn(msg string) {
	l.log(WarnLevel, msg)
}

func (l *SlogLogger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) Error(msg string) {
	l.log(ErrorLevel, msg)
}

func (l *SlogLogger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *SlogLogger) WithField(key string, value interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value
	return &SlogLogger{fields: newFields}
}

func (l *SlogLogger) WithFields(fields map[string]interface{}) Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &SlogLogger{fields: newFields}
}

// log forwards the record to the shared slog handler.
func (l *SlogLogger) log(level LogLevel, msg string) {
	handler := currentHandler()
	ctx := context.Background()
	if !handler.Enabled(ctx, level.slogLevel()) {
		return
	}

	attrs := make([]any, 0, len(l.fields)*2)
	for k, v := range l.fields {
		attrs = append(attrs, k, v)
	}
	slog.New(handler).Log(ctx, level.slogLevel(), msg, attrs...)
}
