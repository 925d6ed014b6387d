// Package observability provides structured logging, metrics collection,
// and request tracing utilities for Trustline.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogFormat selects the log output encoding.
type LogFormat string

const (
	// LogFormatText is human-readable, for local development.
	LogFormatText LogFormat = "text"
	// LogFormatJSON is machine-readable, for production log pipelines.
	LogFormatJSON LogFormat = "json"
)

// LogLevel is the minimum severity that gets emitted.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures the logger.
type LogConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr when nil.
	Output io.Writer
	// AddSource includes the caller's file and line.
	AddSource bool
	// ServiceName and ServiceVersion are stamped on every entry.
	ServiceName    string
	ServiceVersion string
}

// DefaultLogConfig is the development setup: text to stderr at info.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		AddSource:      false,
		ServiceName:    "trustline",
		ServiceVersion: "dev",
	}
}

// ProductionLogConfig is the production setup: JSON to stdout with
// source locations.
func ProductionLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatJSON,
		Output:         os.Stdout,
		AddSource:      true,
		ServiceName:    "trustline",
		ServiceVersion: "unknown",
	}
}

// NewLogger builds a structured logger. Every entry carries the service
// attributes plus any correlation, request and user IDs found on the
// logging context.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var inner slog.Handler
	if cfg.Format == LogFormatJSON {
		inner = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		inner = slog.NewTextHandler(cfg.Output, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}

	return slog.New(&attributeHandler{handler: inner, attrs: attrs})
}

// LoggerFromEnv builds a logger from environment variables:
// TRUSTLINE_ENV=production switches to the production config,
// TRUSTLINE_LOG_LEVEL and TRUSTLINE_LOG_FORMAT override individual
// settings, TRUSTLINE_VERSION sets the version attribute.
func LoggerFromEnv() *slog.Logger {
	cfg := DefaultLogConfig()
	if os.Getenv("TRUSTLINE_ENV") == "production" {
		cfg = ProductionLogConfig()
	}

	if level := os.Getenv("TRUSTLINE_LOG_LEVEL"); level != "" {
		cfg.Level = LogLevel(level)
	}
	if format := os.Getenv("TRUSTLINE_LOG_FORMAT"); format != "" {
		cfg.Format = LogFormat(format)
	}
	if version := os.Getenv("TRUSTLINE_VERSION"); version != "" {
		cfg.ServiceVersion = version
	}

	return NewLogger(cfg)
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// attributeHandler stamps service attributes and context-carried IDs
// onto every record before delegating to the wrapped handler.
type attributeHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
}

func (h *attributeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *attributeHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)

	contextIDs := []struct {
		key   string
		value string
	}{
		{CorrelationIDKey, CorrelationIDFromContext(ctx)},
		{RequestIDKey, RequestIDFromContext(ctx)},
		{UserIDKey, UserIDFromContext(ctx)},
	}
	for _, id := range contextIDs {
		if id.value != "" {
			r.AddAttrs(slog.String(id.key, id.value))
		}
	}

	return h.handler.Handle(ctx, r)
}

func (h *attributeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &attributeHandler{
		handler: h.handler.WithAttrs(attrs),
		attrs:   h.attrs,
	}
}

func (h *attributeHandler) WithGroup(name string) slog.Handler {
	return &attributeHandler{
		handler: h.handler.WithGroup(name),
		attrs:   h.attrs,
	}
}

// LogOperation returns a child logger pinned to one named operation.
func LogOperation(logger *slog.Logger, operation string, attrs ...any) *slog.Logger {
	args := append([]any{"operation", operation}, attrs...)
	return logger.With(args...)
}

// LogDuration logs how long an operation took, measured from start.
func LogDuration(logger *slog.Logger, operation string, start time.Time) {
	logger.Info("operation completed",
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
