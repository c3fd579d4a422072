// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/remora-foundation/remora/wire"
)

// eventBuffer is the capacity of the in-process event stream. Events
// beyond a full buffer are dropped (forwarding is best-effort).
const eventBuffer = 128

// Pair connects an in-process consumer endpoint to a privileged
// handler. Values cross without serialization; the JSON-serializable
// payload contract is the caller's responsibility.
//
// The Pair itself is the Origin for every request it delivers: events
// the handler sends back arrive on the endpoint's Events channel.
type Pair struct {
	handler Handler

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// sendMu serializes event sends against Close so a forwarder can
	// never send on the events channel after it is closed.
	sendMu    sync.Mutex
	events    chan wire.Event
	closed    chan struct{}
	closeOnce sync.Once
}

var _ Origin = (*Pair)(nil)

// NewPair creates a connected in-process transport delivering requests
// to handler.
func NewPair(handler Handler) *Pair {
	return &Pair{
		handler: handler,
		events:  make(chan wire.Event, eventBuffer),
		closed:  make(chan struct{}),
	}
}

func (p *Pair) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Endpoint returns the consumer-side capability.
func (p *Pair) Endpoint() Endpoint { return pairEndpoint{p} }

// Close shuts the transport down. Subsequent calls on the endpoint
// fail with transport-unavailable and the event stream is closed.
// Idempotent.
func (p *Pair) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.sendMu.Lock()
		close(p.events)
		p.sendMu.Unlock()
	})
}

// SendEvent delivers a forwarded event to the endpoint's event stream.
// Drops the event if the buffer is full or the pair is closed.
func (p *Pair) SendEvent(evt wire.Event) error {
	// Holding sendMu across the closed check and the send keeps Close
	// from closing the events channel in between; a method invocation
	// must never be able to panic the host by raising an event during
	// shutdown.
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	select {
	case <-p.closed:
		return wire.NewError(wire.KindTransportUnavailable, "pair is closed")
	default:
	}
	select {
	case p.events <- evt:
		return nil
	default:
		p.logger().Warn("event buffer full, dropping event",
			"id", evt.ID,
			"event_type", evt.EventType,
		)
		return fmt.Errorf("event buffer full")
	}
}

// pairEndpoint is the consumer side of a Pair.
type pairEndpoint struct {
	pair *Pair
}

func (e pairEndpoint) Call(ctx context.Context, req wire.Request, result any) error {
	select {
	case <-e.pair.closed:
		return wire.NewError(wire.KindTransportUnavailable, "pair is closed")
	default:
	}

	type reply struct {
		value any
		err   error
	}
	done := make(chan reply, 1)
	go func() {
		value, err := e.pair.handler.HandleRequest(ctx, e.pair, req)
		done <- reply{value: value, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		return assignResult(result, r.value)
	case <-ctx.Done():
		// The request keeps running on the host; only the wait is
		// abandoned.
		return ctx.Err()
	}
}

func (e pairEndpoint) Send(req wire.Request) error {
	select {
	case <-e.pair.closed:
		return wire.NewError(wire.KindTransportUnavailable, "pair is closed")
	default:
	}
	go func() {
		if _, err := e.pair.handler.HandleRequest(context.Background(), e.pair, req); err != nil {
			e.pair.logger().Debug("one-way request failed",
				"type", req.Type,
				"error", err,
			)
		}
	}()
	return nil
}

func (e pairEndpoint) CallSync(req wire.Request, result any) error {
	select {
	case <-e.pair.closed:
		return wire.NewError(wire.KindTransportUnavailable, "pair is closed")
	default:
	}
	// Inline invocation: no goroutine, no suspension point.
	value, err := e.pair.handler.HandleRequest(context.Background(), e.pair, req)
	if err != nil {
		return err
	}
	return assignResult(result, value)
}

func (e pairEndpoint) Events() <-chan wire.Event { return e.pair.events }

// assignResult stores value into the pointer target result. A nil
// result discards the value; a nil value leaves the target untouched.
func assignResult(result, value any) error {
	if result == nil || value == nil {
		return nil
	}
	pointer := reflect.ValueOf(result)
	if pointer.Kind() != reflect.Pointer || pointer.IsNil() {
		return fmt.Errorf("transport: result must be a non-nil pointer, got %T", result)
	}
	target := pointer.Elem()
	source := reflect.ValueOf(value)
	if !source.Type().AssignableTo(target.Type()) {
		return fmt.Errorf("transport: cannot assign %T reply into %T", value, result)
	}
	target.Set(source)
	return nil
}
