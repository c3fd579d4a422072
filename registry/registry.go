// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/remora-foundation/remora/event"
	"github.com/remora-foundation/remora/transport"
	"github.com/remora-foundation/remora/wire"
)

// Constructor builds an instance of a registered class from
// positional JSON-shaped arguments. Returning an error surfaces to
// the consumer as construction-failed; no handle is registered.
type Constructor func(args []any) (any, error)

// Registry owns all live object instances exposed across the
// boundary. Safe for concurrent use; the critical mutations (id
// allocation, handle commit, singleton binding) happen under one
// mutex with no suspension point, so concurrent requests cannot
// observe duplicate ids or duplicate singletons.
type Registry struct {
	classes map[string]Constructor

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	mu         sync.Mutex
	nextID     uint64
	handles    map[uint64]*handle
	singletons map[string]*singletonBinding
}

// handle binds an id to a live instance and the endpoint that owns
// it. The origin reference is non-owning and used only for directed
// event delivery.
type handle struct {
	id           uint64
	instance     any
	origin       transport.Origin
	eventCapable bool

	// cancelForward removes the event-forwarding hook. Nil when the
	// instance is not hookable.
	cancelForward func()
}

// singletonBinding records the singleton for one class name. A
// binding is inserted provisionally before construction begins so a
// concurrent request for the same class waits on ready instead of
// constructing a second instance. On construction failure the
// provisional binding is removed and err is set for the waiters.
type singletonBinding struct {
	ready chan struct{}

	// Set before ready is closed, read only after.
	result wire.CreateResult
	err    error
}

// New creates a Registry serving the given class table. The table is
// copied; it is immutable for the registry's lifetime and lookups for
// absent names fail with unknown-class.
func New(classes map[string]Constructor) *Registry {
	copied := make(map[string]Constructor, len(classes))
	for name, constructor := range classes {
		copied[name] = constructor
	}
	return &Registry{
		classes:    copied,
		handles:    make(map[uint64]*handle),
		singletons: make(map[string]*singletonBinding),
	}
}

func (r *Registry) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Create constructs a transient instance of className and registers a
// handle owned by origin. Returns the new id and whether the instance
// is event-capable.
func (r *Registry) Create(ctx context.Context, origin transport.Origin, className string, args []any) (wire.CreateResult, error) {
	constructor, exists := r.classes[className]
	if !exists {
		return wire.CreateResult{}, wire.NewError(wire.KindUnknownClass, "class %q is not registered", className)
	}

	instance, err := constructor(args)
	if err != nil {
		// No handle is registered on failure.
		return wire.CreateResult{}, wire.WrapError(wire.KindConstructionFailed, err, "constructing %q", className)
	}

	return r.register(instance, origin, className), nil
}

// register allocates the next id and commits the handle. Id
// allocation and commit happen under one lock acquisition so ids are
// unique and monotonic even under concurrent creation.
func (r *Registry) register(instance any, origin transport.Origin, className string) wire.CreateResult {
	_, eventCapable := instance.(event.Target)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	entry := &handle{
		id:           id,
		instance:     instance,
		origin:       origin,
		eventCapable: eventCapable,
	}
	r.handles[id] = entry
	r.mu.Unlock()

	if hookable, ok := instance.(event.Hookable); ok {
		entry.cancelForward = r.installForwarder(hookable, id, origin)
	}

	r.logger().Debug("object created",
		"class", className,
		"id", id,
		"event_capable", eventCapable,
	)
	return wire.CreateResult{ID: id, IsEventCapable: eventCapable}
}

// installForwarder mirrors every event the instance dispatches to the
// owning endpoint. The hook runs after local dispatch completes, so
// local listeners are never affected by delivery failures and
// forwarded events leave in the order they were raised.
func (r *Registry) installForwarder(hookable event.Hookable, id uint64, origin transport.Origin) func() {
	return hookable.AfterDispatch(func(evt event.Event) {
		if err := origin.SendEvent(wire.NewEvent(id, evt.Type, evt.Detail)); err != nil {
			r.logger().Debug("event forwarding failed",
				"id", id,
				"event_type", evt.Type,
				"error", err,
			)
		}
	})
}

// GetSingleton returns the singleton handle for className,
// constructing it on first request. Constructor arguments are ignored
// when a binding already exists. Two concurrent requests for an
// unbound class construct exactly one instance: the loser waits on
// the winner's provisional binding.
func (r *Registry) GetSingleton(ctx context.Context, origin transport.Origin, className string, args []any) (wire.CreateResult, error) {
	r.mu.Lock()
	if binding, exists := r.singletons[className]; exists {
		r.mu.Unlock()
		<-binding.ready
		if binding.err != nil {
			return wire.CreateResult{}, binding.err
		}
		return binding.result, nil
	}
	binding := &singletonBinding{ready: make(chan struct{})}
	r.singletons[className] = binding
	r.mu.Unlock()

	result, err := r.Create(ctx, origin, className, args)
	if err != nil {
		// Remove the provisional binding so a later request may
		// retry; waiters blocked on this attempt observe the error.
		r.mu.Lock()
		delete(r.singletons, className)
		r.mu.Unlock()
		binding.err = err
		close(binding.ready)
		return wire.CreateResult{}, err
	}

	binding.result = result
	close(binding.ready)
	return result, nil
}

// Release drops the handles for the given ids unconditionally and
// without notifying anyone. Unknown or already-released ids are a
// no-op. Singleton ids are not special-cased here — not sending them
// is consumer-side policy.
func (r *Registry) Release(ids []uint64) {
	var cancels []func()

	r.mu.Lock()
	for _, id := range ids {
		entry, exists := r.handles[id]
		if !exists {
			continue
		}
		delete(r.handles, id)
		if entry.cancelForward != nil {
			cancels = append(cancels, entry.cancelForward)
		}
	}
	r.mu.Unlock()

	// Hook removal happens outside the lock: it takes the emitter's
	// own lock, which an in-flight Dispatch may hold while forwarding.
	for _, cancel := range cancels {
		cancel()
	}

	r.logger().Debug("released", "ids", ids)
}

// HandleCount returns the number of live handles. Intended for
// observability and tests.
func (r *Registry) HandleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// lookup returns the handle for id.
func (r *Registry) lookup(id uint64) (*handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, exists := r.handles[id]
	return entry, exists
}
