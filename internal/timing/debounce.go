package timing

import (
	"sync"
	"sync/atomic"
	"time"
)

// DebouncedFunc collapses bursts of calls into one trailing call that
// receives the argument of the last call in the burst. The callback is kept
// in a single-slot cell and read when the timer fires, so SetFunc takes
// effect for a call that is already pending.
type DebouncedFunc[A any] struct {
	clock Clock
	delay time.Duration
	fn    atomic.Pointer[func(A)]

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	arg     A
	pending bool
	closed  bool
}

// NewDebouncedFunc returns a debounced wrapper around fn.
func NewDebouncedFunc[A any](clock Clock, delay time.Duration, fn func(A)) *DebouncedFunc[A] {
	d := &DebouncedFunc[A]{clock: orSystem(clock), delay: delay}
	d.SetFunc(fn)
	return d
}

// SetFunc replaces the callback. A pending call will invoke the new one.
func (d *DebouncedFunc[A]) SetFunc(fn func(A)) {
	if fn == nil {
		d.fn.Store(nil)
		return
	}
	d.fn.Store(&fn)
}

// Call records arg and restarts the wait window.
func (d *DebouncedFunc[A]) Call(arg A) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.arg = arg
	d.pending = true
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a call is waiting for its window to elapse.
func (d *DebouncedFunc[A]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs a pending call immediately. It reports whether one ran.
func (d *DebouncedFunc[A]) Flush() bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	arg := d.take()
	d.mu.Unlock()

	d.invoke(arg)
	return true
}

// Cancel drops a pending call without running it.
func (d *DebouncedFunc[A]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending {
		d.take()
	}
}

// Close cancels any pending call; later calls are ignored.
func (d *DebouncedFunc[A]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending {
		d.take()
	}
	d.closed = true
}

func (d *DebouncedFunc[A]) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || !d.pending || gen != d.gen {
		d.mu.Unlock()
		return
	}
	arg := d.take()
	d.mu.Unlock()

	d.invoke(arg)
}

// take clears the pending state and returns the stored argument. Callers hold d.mu.
func (d *DebouncedFunc[A]) take() A {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	arg := d.arg
	var zero A
	d.arg = zero
	d.pending = false
	d.gen++
	return arg
}

func (d *DebouncedFunc[A]) invoke(arg A) {
	if fn := d.fn.Load(); fn != nil {
		(*fn)(arg)
	}
}

// Debouncer is a value debounce: the settled value only follows Set after
// delay has passed with no further Set.
type Debouncer[T any] struct {
	fn *DebouncedFunc[T]

	mu      sync.Mutex
	value   T
	settled bool
}

// NewDebouncer returns a Debouncer that reports settled values to onSettle,
// which may be nil.
func NewDebouncer[T any](clock Clock, delay time.Duration, onSettle func(T)) *Debouncer[T] {
	d := &Debouncer[T]{}
	d.fn = NewDebouncedFunc(clock, delay, func(v T) {
		d.mu.Lock()
		d.value = v
		d.settled = true
		d.mu.Unlock()
		if onSettle != nil {
			onSettle(v)
		}
	})
	return d
}

// Set offers a new value and restarts the window.
func (d *Debouncer[T]) Set(v T) {
	d.fn.Call(v)
}

// Value returns the last settled value and whether any value has settled.
func (d *Debouncer[T]) Value() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.settled
}

// Pending reports whether a value is waiting to settle.
func (d *Debouncer[T]) Pending() bool {
	return d.fn.Pending()
}

// Close discards a pending value.
func (d *Debouncer[T]) Close() {
	d.fn.Close()
}
