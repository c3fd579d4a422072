// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the message shapes exchanged between the
// unprivileged consumer and the privileged host.
//
// All payloads are JSON-serializable: requests and events carry only
// strings, numbers, booleans, nil, and string-keyed maps and slices
// thereof. Struct fields are tagged for both JSON and CBOR so that
// transports can pick either framing without duplicating the types
// (the Unix-socket transport frames with CBOR; in-process transports
// pass the structs directly).
//
// A single [Request] struct with a Type discriminator covers every
// consumer-to-host message, mirroring the "action" dispatch style of
// the host's request handling. [Event] is the only host-to-consumer
// push message. [Response] is the envelope used by transports that
// need an explicit reply frame.
//
// All failures produced by the host surface as [*Error] with a stable
// [Kind] code. [IsKind] tests for a specific code through wrapping.
package wire
