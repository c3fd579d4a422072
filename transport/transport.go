// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"

	"github.com/remora-foundation/remora/wire"
)

// Origin identifies the endpoint that sent an inbound request. The
// host registry keeps a non-owning Origin reference per handle and
// uses it to direct forwarded events at the owning consumer.
type Origin interface {
	// SendEvent pushes one forwarded event toward the endpoint.
	// Fire-and-forget: an error means the event was dropped, never
	// that it will be retried.
	SendEvent(evt wire.Event) error
}

// Handler is the privileged-side request sink. The host registry
// implements it; transports deliver every decoded consumer request
// through it.
type Handler interface {
	// HandleRequest processes one request and returns its
	// JSON-serializable reply value, or an error (normally a
	// *wire.Error). Requests with no reply (release) return nil, nil.
	HandleRequest(ctx context.Context, origin Origin, req wire.Request) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, origin Origin, req wire.Request) (any, error)

// HandleRequest calls f.
func (f HandlerFunc) HandleRequest(ctx context.Context, origin Origin, req wire.Request) (any, error) {
	return f(ctx, origin, req)
}

// Endpoint is the consumer-side boundary capability. The proxy
// manager performs every round trip through it.
type Endpoint interface {
	// Call sends req and waits for the reply. If result is non-nil it
	// receives the reply value. Honors ctx cancellation for the wait,
	// but a request already sent cannot be aborted on the host.
	Call(ctx context.Context, req wire.Request, result any) error

	// Send delivers req one-way. No reply is read and delivery
	// failures are not reported beyond the returned error.
	Send(req wire.Request) error

	// CallSync performs a blocking round trip with no suspension
	// point. Must not be invoked from a context where blocking is
	// unsafe; that is the caller's responsibility.
	CallSync(req wire.Request, result any) error

	// Events returns the inbound push-event stream. The channel is
	// closed when the transport shuts down.
	Events() <-chan wire.Event
}
