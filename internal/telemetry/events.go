// Package telemetry carries the observability side of the persistence core:
// the error-kind taxonomy, the Reporter channel for soft failures, slog
// loggers scoped to a save attempt, and prometheus metrics.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Kind classifies a persistence failure.
type Kind string

const (
	KindSerialization     Kind = "serialization"
	KindLocalWrite        Kind = "local_write"
	KindRemoteUnavailable Kind = "remote_unavailable"
	KindConfiguration     Kind = "configuration"
	KindUnknown           Kind = "unknown"
)

// Severity separates failures the user should see from background warnings.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type kinded interface {
	Kind() Kind
}

// KindOf returns the Kind of the first error in err's chain that declares one.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Event is one report on the observability channel.
type Event struct {
	Kind     Kind
	Severity Severity
	Op       string
	Key      string
	Err      error
}

// Reporter receives soft and hard persistence failures.
type Reporter interface {
	Report(ctx context.Context, event Event)
}

// LogReporter writes events to a slog logger and counts them.
type LogReporter struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewLogReporter returns a Reporter backed by logger. metrics may be nil.
func NewLogReporter(logger *slog.Logger, metrics *Metrics) *LogReporter {
	if logger == nil {
		logger = Discard()
	}
	return &LogReporter{logger: logger.With("component", "persistence"), metrics: metrics}
}

func (r *LogReporter) Report(ctx context.Context, event Event) {
	level := slog.LevelError
	if event.Severity == SeverityWarning {
		level = slog.LevelWarn
	}
	attrs := []any{"kind", string(event.Kind), "op", event.Op}
	if event.Key != "" {
		attrs = append(attrs, "key", event.Key)
	}
	if event.Err != nil {
		attrs = append(attrs, "err", event.Err.Error())
	}
	LoggerFrom(ctx, r.logger).Log(ctx, level, "persistence event", attrs...)
	r.metrics.IncEvent(event.Kind, event.Severity)
}

// Recorder keeps events in memory so tests can assert on kinds.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything reported so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of all reported events in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

type nopReporter struct{}

func (nopReporter) Report(context.Context, Event) {}

// Nop returns a Reporter that drops every event.
func Nop() Reporter {
	return nopReporter{}
}
