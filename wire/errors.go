// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
)

// Kind is a stable error code carried across the boundary. Callers
// match on Kind rather than message text.
type Kind string

// Error kinds produced by the host and the consumer-side manager.
const (
	// KindUnknownClass: the class name is not in the host's class
	// registry.
	KindUnknownClass Kind = "unknown-class"

	// KindConstructionFailed: the constructor was found but returned
	// an error. The underlying error is wrapped.
	KindConstructionFailed Kind = "construction-failed"

	// KindObjectNotFound: the object id is unbound (never created or
	// already released).
	KindObjectNotFound Kind = "object-not-found"

	// KindMethodNotFound: the instance has no callable member with the
	// requested name.
	KindMethodNotFound Kind = "method-not-found"

	// KindMethodInvocationFailed: the method ran and failed. The
	// underlying error is wrapped.
	KindMethodInvocationFailed Kind = "method-invocation-failed"

	// KindTransportUnavailable: consumer-side only; the boundary
	// transport capability was never established or has shut down.
	KindTransportUnavailable Kind = "transport-unavailable"
)

// Error is a structured boundary error. Callers use errors.As to
// extract it, or [IsKind] for a single-code check:
//
//	var wireErr *wire.Error
//	if errors.As(err, &wireErr) {
//	    if wireErr.Kind == wire.KindObjectNotFound { ... }
//	}
type Error struct {
	// Kind is the stable error code.
	Kind Kind

	// Message is the human-readable description.
	Message string

	// cause is the wrapped underlying error, set for
	// construction-failed and method-invocation-failed.
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remora: %s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates an Error with the given kind and formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error that records cause as the underlying
// error. The cause's text is appended to the message so it survives
// serialization across the boundary, where the wrapped chain is lost.
func WrapError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...) + ": " + cause.Error(),
		cause:   cause,
	}
}

// IsKind reports whether err is (or wraps) a *Error with the given
// kind.
func IsKind(err error, kind Kind) bool {
	var wireErr *Error
	if errors.As(err, &wireErr) {
		return wireErr.Kind == kind
	}
	return false
}
