// Package timing provides clock-driven rate limiters: a value debouncer, a
// callback debouncer and a trailing-edge throttler. None of them know
// anything about documents or persistence.
package timing

import "time"

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Clock is the time source used by every primitive in this package.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func orSystem(clock Clock) Clock {
	if clock == nil {
		return SystemClock()
	}
	return clock
}
