// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
	"weak"

	"github.com/remora-foundation/remora/event"
	"github.com/remora-foundation/remora/lib/clock"
	"github.com/remora-foundation/remora/transport"
	"github.com/remora-foundation/remora/wire"
)

// defaultSweepInterval is how often reclaimed stubs are collected into
// a release batch when the caller does not configure an interval.
const defaultSweepInterval = 5 * time.Second

// Manager tracks every stub minted on this endpoint and runs the two
// background loops of the consumer side: the event pump and the
// release sweeper. Create it with [NewManager], configure the exported
// fields before [Manager.Start], and [Manager.Close] it when done.
type Manager struct {
	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock drives the release sweeper. If nil, the real clock is
	// used. Tests inject clock.Fake.
	Clock clock.Clock

	// SweepInterval is the cadence of the release sweeper. Zero means
	// defaultSweepInterval.
	SweepInterval time.Duration

	endpoint transport.Endpoint

	mu         sync.Mutex
	stubs      map[uint64]weak.Pointer[Stub]
	singletons map[string]*Stub
	pending    []uint64
	started    bool

	stop      chan struct{}
	closeOnce sync.Once
	loops     sync.WaitGroup
}

// NewManager creates a Manager speaking through endpoint. The manager
// is usable for round trips immediately; Start launches the event pump
// and the release sweeper.
func NewManager(endpoint transport.Endpoint) *Manager {
	return &Manager{
		endpoint:   endpoint,
		stubs:      make(map[uint64]weak.Pointer[Stub]),
		singletons: make(map[string]*Stub),
		stop:       make(chan struct{}),
	}
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *Manager) clock() clock.Clock {
	if m.Clock != nil {
		return m.Clock
	}
	return clock.Real()
}

func (m *Manager) sweepInterval() time.Duration {
	if m.SweepInterval > 0 {
		return m.SweepInterval
	}
	return defaultSweepInterval
}

// Start launches the event pump and the release sweeper. The loops run
// until ctx is canceled, Close is called, or the endpoint's event
// stream closes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("proxy manager already started")
	}
	m.started = true

	m.loops.Add(2)
	go m.pumpEvents(ctx)
	go m.runSweeper(ctx)
	return nil
}

// Close stops the background loops, waits for them to exit, and
// flushes any queued release ids in one final batch. Idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.loops.Wait()
		m.sweep()
	})
}

// CreateObject constructs a transient instance of className on the
// host and returns its stub.
func (m *Manager) CreateObject(ctx context.Context, className string, args ...any) (*Stub, error) {
	var result wire.CreateResult
	err := m.endpoint.Call(ctx, wire.Request{
		Type:      wire.TypeNew,
		ClassName: className,
		Args:      args,
	}, &result)
	if err != nil {
		return nil, err
	}
	return m.adopt(result), nil
}

// GetSingleton returns the stub for className's singleton,
// constructing it on first request. Cached stubs are returned without
// a round trip; constructor arguments only take effect on the request
// that first constructs the instance.
func (m *Manager) GetSingleton(ctx context.Context, className string, args ...any) (*Stub, error) {
	if cached := m.cachedSingleton(className); cached != nil {
		return cached, nil
	}
	var result wire.CreateResult
	err := m.endpoint.Call(ctx, wire.Request{
		Type:      wire.TypeGetSingleton,
		ClassName: className,
		Args:      args,
	}, &result)
	if err != nil {
		return nil, err
	}
	return m.adoptSingleton(className, result), nil
}

// GetSingletonSync is GetSingleton as a blocking round trip with no
// suspension point. Intended for startup paths that cannot yield;
// everything else should prefer GetSingleton.
func (m *Manager) GetSingletonSync(className string, args ...any) (*Stub, error) {
	if cached := m.cachedSingleton(className); cached != nil {
		return cached, nil
	}
	var result wire.CreateResult
	err := m.endpoint.CallSync(wire.Request{
		Type:      wire.TypeGetSingletonSync,
		ClassName: className,
		Args:      args,
	}, &result)
	if err != nil {
		return nil, err
	}
	return m.adoptSingleton(className, result), nil
}

// Release drops the stub's table entry and queues its id for the next
// release batch. Optional: stubs that simply go out of scope are
// reclaimed by the sweeper. Releasing a singleton stub is refused.
func (m *Manager) Release(s *Stub) {
	if s.singleton {
		m.logger().Warn("refusing to release singleton stub", "id", s.id)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.stubs[s.id]; !exists {
		return
	}
	delete(m.stubs, s.id)
	m.pending = append(m.pending, s.id)
}

// StubCount returns the number of tracked (possibly reclaimed) stub
// entries. Intended for observability and tests.
func (m *Manager) StubCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stubs)
}

func (m *Manager) cachedSingleton(className string) *Stub {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.singletons[className]
}

// adopt mints a stub for a freshly created remote object and tracks it
// weakly so reclamation can be observed by the sweeper.
func (m *Manager) adopt(result wire.CreateResult) *Stub {
	s := newStub(m, result.ID, result.IsEventCapable)
	m.mu.Lock()
	m.stubs[result.ID] = weak.Make(s)
	m.mu.Unlock()
	return s
}

// adoptSingleton commits the singleton stub for className. Two
// concurrent first requests both round-trip (the host returns the same
// id); the loser discards its result and adopts the winner's stub.
func (m *Manager) adoptSingleton(className string, result wire.CreateResult) *Stub {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, exists := m.singletons[className]; exists {
		return existing
	}
	s := newStub(m, result.ID, result.IsEventCapable)
	s.singleton = true
	m.singletons[className] = s
	m.stubs[result.ID] = weak.Make(s)
	return s
}

// pumpEvents re-dispatches forwarded host events onto the local stubs.
func (m *Manager) pumpEvents(ctx context.Context) {
	defer m.loops.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case evt, ok := <-m.endpoint.Events():
			if !ok {
				return
			}
			m.dispatchEvent(evt)
		}
	}
}

// dispatchEvent routes one forwarded event to its stub. Events for
// unknown or already-reclaimed ids are dropped: the host forwards
// best-effort and a release batch may still be in flight.
func (m *Manager) dispatchEvent(evt wire.Event) {
	m.mu.Lock()
	pointer, exists := m.stubs[evt.ID]
	m.mu.Unlock()
	if !exists {
		m.logger().Debug("event for unknown object", "id", evt.ID, "event_type", evt.EventType)
		return
	}
	s := pointer.Value()
	if s == nil {
		m.logger().Debug("event for reclaimed object", "id", evt.ID, "event_type", evt.EventType)
		return
	}
	if !s.eventCapable {
		m.logger().Debug("event for non-event-capable object", "id", evt.ID, "event_type", evt.EventType)
		return
	}
	s.Dispatch(event.Event{Type: evt.EventType, Detail: evt.Detail})
}
