// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries wire messages across the process boundary.
//
// The host registry and the proxy manager treat the boundary as an
// opaque capability: the consumer side holds an [Endpoint] (async
// request/response, fire-and-forget send, blocking round trip, and an
// inbound event stream); the privileged side implements [Handler] and
// receives an [Origin] per request so replies and forwarded events can
// be directed at the endpoint that asked.
//
// Two implementations ship with the package:
//
//   - [Pair] connects both sides inside one process over channels,
//     with no serialization. Used for same-process embedding and for
//     tests of the registry/proxy state machines.
//   - [SocketHost] and [SocketClient] connect the sides over a Unix
//     socket with CBOR framing. Each request travels on its own
//     connection (one request, one response); a long-lived subscribe
//     connection per session carries the event stream; release frames
//     are fire-and-forget with no reply.
//
// Payloads must be JSON-serializable in both cases — the in-process
// pair does not enforce this, the socket framing does.
package transport
