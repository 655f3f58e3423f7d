package timing

import (
	"sync"
	"time"
)

// Throttler applies values at most once per interval. A value that arrives
// too soon is deferred to the interval boundary instead of being dropped,
// and the boundary applies whatever value is latest at that moment.
type Throttler[T any] struct {
	clock    Clock
	interval time.Duration
	onApply  func(T)

	mu          sync.Mutex
	value       T
	next        T
	lastApplied time.Time
	pending     bool
	timer       Timer
	gen         uint64
	closed      bool
}

// NewThrottler starts a throttler holding initial, counted as applied now.
func NewThrottler[T any](clock Clock, interval time.Duration, initial T, onApply func(T)) *Throttler[T] {
	clock = orSystem(clock)
	return &Throttler[T]{
		clock:       clock,
		interval:    interval,
		onApply:     onApply,
		value:       initial,
		lastApplied: clock.Now(),
	}
}

// Set offers a new value.
func (t *Throttler[T]) Set(v T) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	elapsed := now.Sub(t.lastApplied)
	if elapsed >= t.interval && !t.pending {
		t.value = v
		t.lastApplied = now
		t.mu.Unlock()
		t.apply(v)
		return
	}

	t.next = v
	if t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = true
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.interval-elapsed, func() { t.fire(gen) })
	t.mu.Unlock()
}

// Value returns the most recently applied value.
func (t *Throttler[T]) Value() T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Close stops a deferred update from being applied.
func (t *Throttler[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
	t.closed = true
	t.gen++
}

func (t *Throttler[T]) fire(gen uint64) {
	t.mu.Lock()
	if t.closed || !t.pending || gen != t.gen {
		t.mu.Unlock()
		return
	}
	v := t.next
	var zero T
	t.next = zero
	t.value = v
	t.lastApplied = t.clock.Now()
	t.pending = false
	t.timer = nil
	t.mu.Unlock()

	t.apply(v)
}

func (t *Throttler[T]) apply(v T) {
	if t.onApply != nil {
		t.onApply(v)
	}
}
