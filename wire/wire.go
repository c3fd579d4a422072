// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/remora-foundation/remora/lib/codec"
)

// Request type discriminators. Every consumer-to-host message is a
// Request with Type set to one of these values.
const (
	// TypeNew constructs a transient object. Fields: ClassName, Args.
	// Reply: CreateResult.
	TypeNew = "new"

	// TypeGetSingleton returns the singleton for a class, constructing
	// it on first request. Fields: ClassName, Args. Reply: CreateResult.
	TypeGetSingleton = "getSingleton"

	// TypeGetSingletonSync is TypeGetSingleton executed as a blocking
	// round trip with no suspension point on the consumer side.
	TypeGetSingletonSync = "getSingletonSync"

	// TypeCall invokes a method on a live object. Fields: ID, Method,
	// Args. Reply: the method's JSON-serializable result.
	TypeCall = "call"

	// TypeRelease drops host-side handles. Fields: IDs. Fire-and-forget;
	// no reply is produced.
	TypeRelease = "release"

	// TypeSubscribe opens the event stream for a session. Used only by
	// connection-oriented transports; in-process transports deliver
	// events directly. Fields: Session.
	TypeSubscribe = "subscribe"
)

// TypeEvent marks host-to-consumer event pushes.
const TypeEvent = "event"

// Request is a consumer-to-host message. Type selects the operation;
// the remaining fields are populated per the Type constants above and
// left zero otherwise.
type Request struct {
	// Type is the request discriminator ("new", "getSingleton",
	// "getSingletonSync", "call", "release", "subscribe").
	Type string `json:"type" cbor:"type"`

	// ClassName names the registered class for construction requests.
	ClassName string `json:"className,omitempty" cbor:"className,omitempty"`

	// Args are positional constructor or method arguments. Every
	// element must be JSON-serializable.
	Args []any `json:"args,omitempty" cbor:"args,omitempty"`

	// ID is the target object id for call requests.
	ID uint64 `json:"id,omitempty" cbor:"id,omitempty"`

	// Method is the member name for call requests.
	Method string `json:"method,omitempty" cbor:"method,omitempty"`

	// IDs lists the object ids to drop for release requests.
	IDs []uint64 `json:"ids,omitempty" cbor:"ids,omitempty"`

	// Session identifies the requesting endpoint on transports where
	// each request travels on its own connection. The host uses it to
	// direct forwarded events at the right subscriber. In-process
	// transports leave it empty.
	Session string `json:"session,omitempty" cbor:"session,omitempty"`
}

// CreateResult is the reply payload for the three construction request
// kinds ("new", "getSingleton", "getSingletonSync").
type CreateResult struct {
	// ID is the host-assigned object id. Ids increase monotonically
	// and are never reused for the host process lifetime.
	ID uint64 `json:"id" cbor:"id"`

	// IsEventCapable reports whether the instance supports the
	// subscribe/dispatch/unsubscribe capability and therefore forwards
	// events to the consumer.
	IsEventCapable bool `json:"isEventCapable" cbor:"isEventCapable"`
}

// Event is a host-to-consumer push message forwarding one event raised
// by a live object. Delivery is best-effort and never confirmed.
type Event struct {
	// Type is always "event".
	Type string `json:"type" cbor:"type"`

	// ID is the object id the event was raised on.
	ID uint64 `json:"id" cbor:"id"`

	// EventType is the event's type string (e.g. "tick").
	EventType string `json:"eventType" cbor:"eventType"`

	// Detail is the event payload. Must be JSON-serializable.
	Detail any `json:"detail,omitempty" cbor:"detail,omitempty"`
}

// NewEvent builds an Event with Type populated.
func NewEvent(id uint64, eventType string, detail any) Event {
	return Event{Type: TypeEvent, ID: id, EventType: eventType, Detail: detail}
}

// Response is the reply envelope used by transports that frame an
// explicit response per request (the socket transport). In-process
// transports hand reply values over directly and never build one.
type Response struct {
	// OK indicates whether the request succeeded.
	OK bool `json:"ok" cbor:"ok"`

	// Kind is the error code when OK is false and the failure was a
	// structured *Error. Empty for transport-level failures.
	Kind Kind `json:"kind,omitempty" cbor:"kind,omitempty"`

	// Error is the error message when OK is false.
	Error string `json:"error,omitempty" cbor:"error,omitempty"`

	// Data is the encoded reply value when OK is true. Absent for
	// requests that produce no reply value.
	Data codec.RawMessage `json:"data,omitempty" cbor:"data,omitempty"`
}

// DecodeError rebuilds the typed error carried by a failed Response.
// The wrapped cause chain does not survive the boundary; only the
// kind and message do.
func (r *Response) DecodeError() error {
	if r.OK {
		return nil
	}
	if r.Kind != "" {
		return &Error{Kind: r.Kind, Message: r.Error}
	}
	return fmt.Errorf("remote error: %s", r.Error)
}
