// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry implements the privileged side of the object
// bridge: it owns every live instance exposed to consumers, assigns
// ids, tracks singleton bindings, dispatches method calls, and
// forwards events.
//
// A [Registry] is created once at startup with an immutable class
// table mapping class names to [Constructor] capabilities. It then
// serves five operations, normally via [Registry.HandleRequest] wired
// to a transport:
//
//   - Create: construct a transient instance, returning {id,
//     isEventCapable}.
//   - GetSingleton: return the class's singleton, constructing it on
//     first request. Constructor arguments are ignored once a binding
//     exists. Concurrent first requests construct exactly one
//     instance.
//   - CallMethod: invoke a named method by reflection with positional
//     JSON-shaped arguments.
//   - Release: unconditionally drop handles. Idempotent; releasing a
//     singleton id is permitted (consumers simply never request it).
//
// Ids increase monotonically and are never reused for the process
// lifetime. Instances implementing [event.Target] are event-capable;
// if they also implement [event.Hookable] the registry installs a
// forwarding hook that mirrors every locally dispatched event to the
// owning endpoint, best-effort, after local dispatch completes.
//
// All failures surface as *wire.Error with a stable kind; see the
// wire package.
package registry
