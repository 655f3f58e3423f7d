package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a slog logger. format is "json" or "text".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

// Discard returns a logger that writes nothing.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Attempt identifies the save attempt a context belongs to.
type Attempt struct {
	ID     string
	Source string
}

type attemptKey struct{}

// WithAttempt tags ctx with a save attempt.
func WithAttempt(ctx context.Context, id, source string) context.Context {
	return context.WithValue(ctx, attemptKey{}, Attempt{ID: id, Source: source})
}

// AttemptFrom returns the attempt ctx was tagged with, if any.
func AttemptFrom(ctx context.Context) (Attempt, bool) {
	if ctx == nil {
		return Attempt{}, false
	}
	a, ok := ctx.Value(attemptKey{}).(Attempt)
	return a, ok
}

// LoggerFrom returns base with the attempt fields of ctx attached.
func LoggerFrom(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = Discard()
	}
	a, ok := AttemptFrom(ctx)
	if !ok {
		return base
	}
	return base.With(
		slog.String("attempt_id", a.ID),
		slog.String("source", a.Source),
	)
}
