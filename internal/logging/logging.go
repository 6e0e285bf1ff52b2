package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// New creates a logger writing text or JSON records to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LevelFromString(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)}))
}

// LevelFromString converts debug, info, warn or error to a slog.Level.
// Unrecognized strings map to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKeyLogger struct{}
type ctxKeyRequestID struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger{}, logger)
}

// From returns the logger stored in ctx, or slog.Default().
func From(ctx context.Context) *slog.Logger {
	return FromOr(ctx, nil)
}

// FromOr returns the logger stored in ctx, then fallback, then slog.Default().
func FromOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if v, ok := ctx.Value(ctxKeyLogger{}).(*slog.Logger); ok && v != nil {
		return v
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// NewRequestID returns a fresh request identifier.
func NewRequestID() string { return uuid.NewString() }

// WithRequest tags ctx with a request id, reusing id when it parses as a
// UUID, and attaches a logger carrying it. It returns the id in use.
func WithRequest(ctx context.Context, logger *slog.Logger, id string) (context.Context, string) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		id = NewRequestID()
	} else {
		id = strings.TrimSpace(id)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx = context.WithValue(ctx, ctxKeyRequestID{}, id)
	return WithLogger(ctx, logger.With("request_id", id)), id
}

// RequestID returns the id attached by WithRequest.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}
