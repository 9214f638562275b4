// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock set to initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use. AfterFunc callbacks run synchronously inside
// Advance, in deadline order; a callback must not call Advance.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	callback func()
	done     bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run once the clock has advanced by d. With
// d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stopFunc: func() bool { return false }}
	}

	c.mu.Lock()
	timer := &fakeTimer{deadline: c.current.Add(d), callback: f}
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{stopFunc: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer.done {
			return false
		}
		timer.done = true
		c.removeLocked(timer)
		return true
	}}
}

// Advance moves the clock forward by d and runs every callback whose
// deadline has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	var due []*fakeTimer
	remaining := c.pending[:0]
	for _, timer := range c.pending {
		if !timer.deadline.After(now) {
			timer.done = true
			due = append(due, timer)
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *fakeTimer) int {
		return a.deadline.Compare(b.deadline)
	})
	for _, timer := range due {
		timer.callback()
	}
}

// WaitForTimers blocks until at least n timers are pending. Use it to
// close the race between a goroutine registering a timer and the test
// advancing the clock.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of timers that have neither fired
// nor been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *FakeClock) removeLocked(timer *fakeTimer) {
	if index := slices.Index(c.pending, timer); index >= 0 {
		c.pending = slices.Delete(c.pending, index, index+1)
	}
}
