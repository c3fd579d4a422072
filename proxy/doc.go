// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements the unprivileged side of the object bridge:
// typed stubs standing in for live host objects, reached through any
// [transport.Endpoint].
//
// A [Manager] performs the construction round trips (CreateObject,
// GetSingleton, GetSingletonSync) and hands back a [Stub] per remote
// object. Stubs invoke methods positionally over the boundary and,
// when the remote instance is event-capable, re-dispatch forwarded
// events to local listeners through an embedded [event.Emitter].
//
// Lifecycle is reference-driven. The manager tracks transient stubs
// through weak pointers only, so an unreferenced stub becomes
// collectable like any local value. A periodic sweep finds reclaimed
// stubs and sends their ids to the host in one batched release
// request; each id appears in exactly one batch. Singleton stubs are
// held strongly, cached per class name, and never released. Events
// arriving for an already-reclaimed id are dropped silently.
package proxy
