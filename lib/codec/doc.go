// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Remora's standard CBOR encoding.
//
// The Unix-socket transport frames wire messages as CBOR: it is
// self-delimiting (no length-prefix framing needed on a stream) and
// round-trips the JSON data model losslessly. Encoding uses Core
// Deterministic Encoding (RFC 8949 §4.2) so the same logical message
// always produces identical bytes; decoding accepts standard CBOR and
// ignores unknown fields for forward compatibility.
//
// Any-typed values decode with string-keyed maps (map[string]any, not
// the CBOR default map[any]any), keeping decoded payloads compatible
// with encoding/json and with the JSON-serializable contract of the
// wire package.
package codec
