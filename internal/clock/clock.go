// Package clock abstracts wall time and one-shot timers so that debounce,
// polling and reconnect schedules can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by the realtime and stats
// components.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer cancels it.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable scheduled callback.
type Timer struct {
	stop func() bool
}

// Stop prevents the callback from running. It reports whether the call
// stopped the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}
