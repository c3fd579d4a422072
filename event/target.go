// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "sync"

// Event is one dispatched event. Detail must be JSON-serializable for
// events that cross the process boundary.
type Event struct {
	// Type is the event type string (e.g. "tick").
	Type string

	// Detail is the event payload.
	Detail any
}

// Listener receives dispatched events.
type Listener func(Event)

// ListenerID identifies a subscription for removal. Go functions
// cannot be compared, so Subscribe hands back an id instead.
type ListenerID uint64

// Target is the event capability contract. An instance implementing
// Target is reported as event-capable by the host registry.
type Target interface {
	// Subscribe registers fn for events of the given type and returns
	// an id for Unsubscribe.
	Subscribe(eventType string, fn Listener) ListenerID

	// Unsubscribe removes a subscription. Unknown ids are a no-op.
	Unsubscribe(eventType string, id ListenerID)

	// Dispatch delivers evt synchronously to all listeners subscribed
	// to its type, in subscription order.
	Dispatch(evt Event)
}

// Hookable is implemented by event sources that can mirror every
// dispatched event to forwarding hooks after local listeners have run.
// The host registry uses this to forward events across the boundary
// without disturbing local dispatch.
type Hookable interface {
	// AfterDispatch registers fn to run after each Dispatch completes.
	// The returned cancel func removes the hook; it is safe to call
	// more than once.
	AfterDispatch(fn func(Event)) (cancel func())
}

// listenerEntry pairs a listener with its id.
type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Emitter is the standard Target implementation. The zero value is
// not usable; create with NewEmitter. Safe for concurrent use.
type Emitter struct {
	mu         sync.Mutex
	listeners  map[string][]listenerEntry
	hooks      map[uint64]func(Event)
	nextID     ListenerID
	nextHookID uint64
}

var (
	_ Target   = (*Emitter)(nil)
	_ Hookable = (*Emitter)(nil)
)

// NewEmitter creates an Emitter with no subscriptions.
func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[string][]listenerEntry),
		hooks:     make(map[uint64]func(Event)),
		nextID:    1,
	}
}

// Subscribe registers fn for events of the given type.
func (e *Emitter) Subscribe(eventType string, fn Listener) ListenerID {
	if fn == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[eventType] = append(e.listeners[eventType], listenerEntry{id: id, fn: fn})
	return id
}

// Unsubscribe removes the subscription with the given id.
func (e *Emitter) Unsubscribe(eventType string, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.listeners[eventType]
	for i, entry := range entries {
		if entry.id == id {
			e.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Dispatch delivers evt to all listeners for its type, then to all
// after-dispatch hooks. Listeners run synchronously in the calling
// goroutine; a listener subscribing or unsubscribing during dispatch
// affects only later dispatches.
func (e *Emitter) Dispatch(evt Event) {
	e.mu.Lock()
	entries := make([]listenerEntry, len(e.listeners[evt.Type]))
	copy(entries, e.listeners[evt.Type])
	hooks := make([]func(Event), 0, len(e.hooks))
	for _, hook := range e.hooks {
		hooks = append(hooks, hook)
	}
	e.mu.Unlock()

	for _, entry := range entries {
		entry.fn(evt)
	}
	for _, hook := range hooks {
		hook(evt)
	}
}

// AfterDispatch registers fn to run after each Dispatch, once all
// local listeners have completed.
func (e *Emitter) AfterDispatch(fn func(Event)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHookID
	e.nextHookID++
	e.hooks[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.hooks, id)
	}
}
