// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that schedule work (the rule validation scheduler) or
// stamp records (the configuration store's revision history) take a
// [Clock] instead of calling the time package. Production wiring uses
// [Real]; tests use [Fake], whose time only moves when
// [FakeClock.Advance] is called.
//
// A test that needs a debounced callback to fire:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	scheduler := accessrule.NewScheduler(accessrule.SchedulerConfig{Clock: fake, ...})
//	scheduler.Request(...)
//	fake.WaitForTimers(1)
//	fake.Advance(500 * time.Millisecond)
package clock
