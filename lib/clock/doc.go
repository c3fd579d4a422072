// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface instead of calling
// time.Now, time.After, or time.NewTicker directly. Real() provides
// standard library behavior; Fake() provides a deterministic clock
// that advances only when Advance is called.
//
// The proxy manager's reclamation sweep runs on a Clock ticker, so
// sweep tests advance a FakeClock instead of sleeping:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := proxy.NewManager(endpoint, proxy.WithClock(c))
//	// ... start the manager ...
//	c.WaitForTimers(1)             // sweep ticker registered
//	c.Advance(30 * time.Second)    // fire one sweep deterministically
//
// When a goroutine calls After or NewTicker on a FakeClock, it
// registers a pending waiter. WaitForTimers blocks until a given
// number of waiters exist, eliminating the race between timer
// registration and time advancement.
package clock
