// Package autosave turns a stream of document changes into serialized save
// attempts. Changes are debounced; at most one attempt is in flight, and a
// dispatch requested meanwhile is folded into a single follow-up attempt
// that saves whatever the document looks like when the in-flight one ends.
package autosave

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/telemetry"
	"github.com/GoldLion123RP/resume-builder-sub001/internal/timing"
)

// DefaultDelay is the debounce window used when Options.Delay is zero.
const DefaultDelay = time.Second

// SaveFunc persists one snapshot. It may fail or panic.
type SaveFunc[T any] func(ctx context.Context, doc T) error

// Source says what triggered an attempt.
type Source string

const (
	SourceDebounce Source = "debounce"
	SourceManual   Source = "manual"
	SourceFollowUp Source = "follow_up"
)

// Attempt is one dispatch of a snapshot to the save function.
type Attempt[T any] struct {
	ID          string
	Source      Source
	TriggeredAt time.Time
	Document    T
}

type Options[T any] struct {
	// Delay is the quiet period before an automatic save.
	Delay time.Duration
	// Disabled starts the controller with automatic saves off.
	Disabled bool
	Clock    timing.Clock
	// Equal decides whether Update changed the document. Defaults to
	// reflect.DeepEqual.
	Equal func(a, b T) bool
	// Key only labels logs and events.
	Key      string
	Logger   *slog.Logger
	Reporter telemetry.Reporter
	Metrics  *telemetry.Metrics
	// OnTransition observes every state change. It runs outside the
	// controller lock and may call Status.
	OnTransition func(from, to State)
	// Timeout bounds each attempt's context. Zero means no deadline.
	Timeout time.Duration
}

// Status is a snapshot of the controller for display.
type Status struct {
	State             State
	IsSaving          bool
	LastSaved         *time.Time
	LastError         error
	HasUnsavedChanges bool
	Enabled           bool
}

// PanicError wraps a value recovered from a panicking save function.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("save panicked: %v", e.Value)
}

type transition struct {
	from, to State
}

type Controller[T any] struct {
	save     SaveFunc[T]
	clock    timing.Clock
	equal    func(a, b T) bool
	key      string
	logger   *slog.Logger
	reporter telemetry.Reporter
	metrics  *telemetry.Metrics
	onChange func(from, to State)
	timeout  time.Duration
	debounce *timing.DebouncedFunc[struct{}]

	mu        sync.Mutex
	latest    T
	rev       uint64
	savedRev  uint64
	enabled   bool
	state     State
	inFlight  bool
	followUp  bool
	lastSaved time.Time
	hasSaved  bool
	lastError error
	closed    bool
	idle      chan struct{}
}

// New returns a controller whose baseline is initial. Construction never
// saves.
func New[T any](initial T, save SaveFunc[T], opts Options[T]) *Controller[T] {
	c := &Controller[T]{
		save:     save,
		clock:    opts.Clock,
		equal:    opts.Equal,
		key:      opts.Key,
		logger:   opts.Logger,
		reporter: opts.Reporter,
		metrics:  opts.Metrics,
		onChange: opts.OnTransition,
		timeout:  opts.Timeout,
		latest:   initial,
		enabled:  !opts.Disabled,
		state:    Idle,
	}
	if c.clock == nil {
		c.clock = timing.SystemClock()
	}
	if c.equal == nil {
		c.equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	if c.logger == nil {
		c.logger = telemetry.Discard()
	}
	c.logger = c.logger.With("component", "autosave")
	if c.key != "" {
		c.logger = c.logger.With("key", c.key)
	}
	if c.reporter == nil {
		c.reporter = telemetry.Nop()
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	c.debounce = timing.NewDebouncedFunc(c.clock, delay, func(struct{}) {
		c.dispatch(SourceDebounce)
	})
	return c
}

// Update offers the current document. An unchanged document is ignored;
// a changed one (re)arms the debounce when automatic saves are enabled.
func (c *Controller[T]) Update(doc T) {
	var ts []transition
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.equal(c.latest, doc) {
		c.mu.Unlock()
		return
	}
	c.latest = doc
	c.rev++
	if c.enabled {
		if !c.inFlight {
			c.setState(PendingSave, &ts)
		}
		c.debounce.Call(struct{}{})
	}
	c.mu.Unlock()
	c.emit(ts)
}

// SaveNow skips the debounce window and saves the latest snapshot. While an
// attempt is in flight it schedules one follow-up instead.
func (c *Controller[T]) SaveNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.debounce.Cancel()
	c.mu.Unlock()
	c.dispatch(SourceManual)
}

// SetEnabled turns automatic saving on or off. Manual saves always work.
func (c *Controller[T]) SetEnabled(enabled bool) {
	var ts []transition
	c.mu.Lock()
	if c.closed || c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled
	if !enabled {
		c.debounce.Cancel()
		if c.state == PendingSave {
			c.setState(Idle, &ts)
		}
	} else if c.rev != c.savedRev {
		if !c.inFlight {
			c.setState(PendingSave, &ts)
		}
		c.debounce.Call(struct{}{})
	}
	c.mu.Unlock()
	c.emit(ts)
}

// Close cancels a pending debounce and drops a queued follow-up. An
// attempt already in flight runs to completion but its outcome is not
// recorded.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.followUp = false
	c.debounce.Close()
	if !c.inFlight {
		c.markIdle()
	}
}

// Wait blocks until no attempt is in flight or queued.
func (c *Controller[T]) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush saves unsaved changes now and waits for every attempt to finish.
func (c *Controller[T]) Flush(ctx context.Context) error {
	c.mu.Lock()
	dirty := !c.closed && (c.rev != c.savedRev || c.debounce.Pending())
	c.mu.Unlock()
	if dirty {
		c.SaveNow()
	}
	return c.Wait(ctx)
}

// Status returns a copy of the current status.
func (c *Controller[T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		State:             c.state,
		IsSaving:          c.inFlight,
		LastError:         c.lastError,
		HasUnsavedChanges: c.rev != c.savedRev,
		Enabled:           c.enabled,
	}
	if c.hasSaved {
		saved := c.lastSaved
		s.LastSaved = &saved
	}
	return s
}

// Document returns the latest snapshot offered to Update.
func (c *Controller[T]) Document() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Reset replaces the baseline with a document that is already persisted,
// such as one pulled from the remote tier. Pending and queued saves are
// dropped; an attempt in flight still finishes.
func (c *Controller[T]) Reset(doc T) {
	c.reset(doc, func(uint64) bool { return true })
}

// Revision counts the edits and resets seen so far.
func (c *Controller[T]) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev
}

// ResetIfUnchanged is Reset guarded by a Revision taken earlier. It leaves
// the controller alone and returns false if an Update landed since then.
func (c *Controller[T]) ResetIfUnchanged(rev uint64, doc T) bool {
	return c.reset(doc, func(current uint64) bool { return current == rev })
}

func (c *Controller[T]) reset(doc T, allow func(uint64) bool) bool {
	var ts []transition
	c.mu.Lock()
	if c.closed || !allow(c.rev) {
		c.mu.Unlock()
		return false
	}
	c.debounce.Cancel()
	c.followUp = false
	c.latest = doc
	c.rev++
	c.savedRev = c.rev
	if c.state == PendingSave {
		c.setState(Idle, &ts)
	}
	c.mu.Unlock()
	c.emit(ts)
	return true
}

func (c *Controller[T]) dispatch(source Source) {
	var ts []transition
	c.mu.Lock()
	if c.closed || (source == SourceDebounce && !c.enabled) {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.followUp = true
		c.mu.Unlock()
		c.logger.Debug("save queued behind in-flight attempt", "source", string(source))
		return
	}
	attempt, rev := c.begin(source, &ts)
	c.mu.Unlock()
	c.emit(ts)

	go c.run(attempt, rev)
}

// begin marks an attempt in flight. The attempt carries the latest
// snapshot, so a pending debounce has nothing left to save. Callers hold c.mu.
func (c *Controller[T]) begin(source Source, ts *[]transition) (Attempt[T], uint64) {
	c.debounce.Cancel()
	c.inFlight = true
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	c.setState(Saving, ts)
	return Attempt[T]{
		ID:          uuid.NewString(),
		Source:      source,
		TriggeredAt: c.clock.Now(),
		Document:    c.latest,
	}, c.rev
}

func (c *Controller[T]) run(attempt Attempt[T], rev uint64) {
	ctx := telemetry.WithAttempt(context.Background(), attempt.ID, string(attempt.Source))
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	log := telemetry.LoggerFrom(ctx, c.logger)

	started := time.Now()
	err := c.invoke(ctx, attempt.Document)
	took := time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	c.metrics.ObserveAttempt(string(attempt.Source), outcome, took)
	if err != nil {
		log.Error("save attempt failed", "err", err, "took", took)
		c.reporter.Report(ctx, telemetry.Event{
			Kind:     telemetry.KindOf(err),
			Severity: telemetry.SeverityError,
			Op:       "save",
			Key:      c.key,
			Err:      err,
		})
	} else {
		log.Debug("save attempt finished", "took", took)
	}

	var (
		ts      []transition
		next    Attempt[T]
		more    bool
		nrev    uint64
		release chan struct{}
	)
	c.mu.Lock()
	c.inFlight = false
	if c.closed {
		c.markIdle()
		c.mu.Unlock()
		return
	}
	if err == nil {
		c.lastSaved = c.clock.Now()
		c.hasSaved = true
		c.lastError = nil
		if rev > c.savedRev {
			c.savedRev = rev
		}
		c.setState(Saved, &ts)
	} else {
		c.lastError = err
		c.setState(Failed, &ts)
	}
	c.setState(Idle, &ts)

	switch {
	case c.followUp:
		c.followUp = false
		next, nrev = c.begin(SourceFollowUp, &ts)
		more = true
	case c.debounce.Pending():
		c.setState(PendingSave, &ts)
		release = c.takeIdle()
	default:
		release = c.takeIdle()
	}
	c.mu.Unlock()
	c.emit(ts)
	if release != nil {
		close(release)
	}

	if more {
		go c.run(next, nrev)
	}
}

func (c *Controller[T]) invoke(ctx context.Context, doc T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return c.save(ctx, doc)
}

// markIdle releases Wait callers. Callers hold c.mu.
func (c *Controller[T]) markIdle() {
	if ch := c.takeIdle(); ch != nil {
		close(ch)
	}
}

// takeIdle detaches the idle channel so it can be closed once transitions
// have been emitted. Callers hold c.mu.
func (c *Controller[T]) takeIdle() chan struct{} {
	ch := c.idle
	c.idle = nil
	return ch
}

// setState records a transition for emit. Callers hold c.mu.
func (c *Controller[T]) setState(to State, ts *[]transition) {
	if c.state == to {
		return
	}
	*ts = append(*ts, transition{from: c.state, to: to})
	c.state = to
}

func (c *Controller[T]) emit(ts []transition) {
	if c.onChange == nil {
		return
	}
	for _, t := range ts {
		c.onChange(t.from, t.to)
	}
}
