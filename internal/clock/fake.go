package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. Callbacks run synchronously
// inside Advance in deadline order, so a test observes their effects as soon
// as Advance returns. Callbacks may schedule or stop timers but must not call
// Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	seq      uint64
	fn       func()
	done     bool
}

// NewFake returns a FakeClock starting at initial.
func NewFake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock reaches now+d. A non-positive
// d still waits for the next Advance call.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	ft := &fakeTimer{deadline: c.now.Add(d), seq: c.seq, fn: f}
	c.pending = append(c.pending, ft)
	c.changed.Broadcast()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ft.done {
			return false
		}
		ft.done = true
		c.changed.Broadcast()
		return true
	}}
}

// Advance moves the clock forward by d, firing every timer whose deadline is
// reached, including timers scheduled by callbacks during this Advance.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		next := c.popNext(target)
		if next == nil {
			break
		}
		next.fn()
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// popNext removes and returns the earliest live timer due at or before
// target, moving the clock to its deadline.
func (c *FakeClock) popNext(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := c.pending[:0]
	for _, ft := range c.pending {
		if !ft.done {
			live = append(live, ft)
		}
	}
	c.pending = live

	sort.Slice(c.pending, func(i, j int) bool {
		if c.pending[i].deadline.Equal(c.pending[j].deadline) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].deadline.Before(c.pending[j].deadline)
	})
	if len(c.pending) == 0 || c.pending[0].deadline.After(target) {
		return nil
	}
	ft := c.pending[0]
	c.pending = c.pending[1:]
	ft.done = true
	if ft.deadline.After(c.now) {
		c.now = ft.deadline
	}
	c.changed.Broadcast()
	return ft
}

// PendingCount returns the number of scheduled, unfired, unstopped timers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// WaitForTimers blocks until at least n timers are pending. It closes the
// race between a goroutine scheduling a timer and the test advancing time.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, ft := range c.pending {
		if !ft.done {
			n++
		}
	}
	return n
}
