// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the event-target capability that marks a
// hosted object as event-capable.
//
// An instance registered with the host registry is event-capable when
// it implements [Target]: subscribe, unsubscribe, and dispatch. The
// registry additionally type-asserts for [Hookable] to install its
// forwarding hook; [Emitter], the provided implementation, satisfies
// both. Embedding an Emitter is all a hosted class needs to do for its
// events to reach consumer-side stubs:
//
//	type Clock struct {
//	    *event.Emitter
//	}
//
//	func (c *Clock) tick(n int) {
//	    c.Dispatch(event.Event{Type: "tick", Detail: map[string]any{"n": n}})
//	}
//
// Dispatch runs listeners synchronously in subscription order, then
// runs after-dispatch hooks. Local dispatch therefore always completes
// before any forwarding occurs, and forwarded events for one emitter
// leave in the order they were raised.
package event
