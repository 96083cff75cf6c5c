package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type Logger struct {
	*slog.Logger
}

func NewLogger(serviceName string) *Logger {
	return NewLoggerWithLevel(serviceName, "info")
}

// NewLoggerWithLevel builds the JSON logger with a textual level
// (debug, info, warn, error). Unknown levels fall back to info.
func NewLoggerWithLevel(serviceName, level string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})

	logger := slog.New(handler).With("service", serviceName)
	return &Logger{logger}
}

// NewNopLogger discards everything. Used where a component is built without
// an explicit logger, mostly in tests.
func NewNopLogger() *Logger {
	return &Logger{slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithContext adds trace information from context if available
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return &Logger{l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())}
}
