// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used in this module.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f after duration d. The returned Timer cancels
	// the call with Stop. With d <= 0 the real clock calls f in a new
	// goroutine and the fake clock calls it before returning.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop cancels the pending call. Returns false if the call already
// ran or the timer was already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
