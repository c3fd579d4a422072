// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"sync"

	"github.com/remora-foundation/remora/event"
	"github.com/remora-foundation/remora/wire"
)

// Method is a bound remote method. Calling it performs one boundary
// round trip with positional arguments.
type Method func(ctx context.Context, args ...any) (any, error)

// Stub is the consumer-side representation of one live host object.
// It is a local [event.Target]: the manager re-dispatches forwarded
// events through it, so listeners subscribe and unsubscribe exactly as
// they would on an in-process emitter.
//
// A Stub holds no host-side resource itself. Dropping the last
// reference makes the remote handle eligible for the manager's next
// release batch.
type Stub struct {
	*event.Emitter

	manager      *Manager
	id           uint64
	eventCapable bool
	singleton    bool

	methodMu sync.Mutex
	methods  map[string]Method
}

func newStub(manager *Manager, id uint64, eventCapable bool) *Stub {
	return &Stub{
		Emitter:      event.NewEmitter(),
		manager:      manager,
		id:           id,
		eventCapable: eventCapable,
		methods:      make(map[string]Method),
	}
}

// ID returns the host-assigned object id.
func (s *Stub) ID() uint64 { return s.id }

// IsEventCapable reports whether the remote instance forwards events.
func (s *Stub) IsEventCapable() bool { return s.eventCapable }

// Call invokes the named remote method and returns its decoded result.
func (s *Stub) Call(ctx context.Context, name string, args ...any) (any, error) {
	var result any
	if err := s.CallInto(ctx, name, &result, args...); err != nil {
		return nil, err
	}
	return result, nil
}

// CallInto invokes the named remote method and decodes its result into
// result, which must be a non-nil pointer (or nil to discard).
func (s *Stub) CallInto(ctx context.Context, name string, result any, args ...any) error {
	return s.manager.endpoint.Call(ctx, wire.Request{
		Type:   wire.TypeCall,
		ID:     s.id,
		Method: name,
		Args:   args,
	}, result)
}

// Method returns a callable bound to the named remote method. Repeated
// lookups of the same name return the identical value, so a Method can
// be registered and later deregistered as a listener-style callback.
func (s *Stub) Method(name string) Method {
	s.methodMu.Lock()
	defer s.methodMu.Unlock()
	if bound, exists := s.methods[name]; exists {
		return bound
	}
	bound := func(ctx context.Context, args ...any) (any, error) {
		return s.Call(ctx, name, args...)
	}
	s.methods[name] = bound
	return bound
}

// Subscribe registers fn for forwarded events of the given type.
// Subscribing on a non-event-capable object is permitted but can never
// fire; it is logged as a likely mistake.
func (s *Stub) Subscribe(eventType string, fn event.Listener) event.ListenerID {
	if !s.eventCapable {
		s.manager.logger().Warn("subscribing on non-event-capable object",
			"id", s.id,
			"event_type", eventType,
		)
	}
	return s.Emitter.Subscribe(eventType, fn)
}
