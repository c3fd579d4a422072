// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/remora-foundation/remora/event"
	"github.com/remora-foundation/remora/lib/clock"
	"github.com/remora-foundation/remora/lib/testutil"
	"github.com/remora-foundation/remora/wire"
)

// scriptedEndpoint is a hand-rolled endpoint double. Construction
// requests are answered with sequential ids; call requests reply with
// callReply. Send hands the request to the sent channel.
type scriptedEndpoint struct {
	mu        sync.Mutex
	requests  []wire.Request
	nextID    uint64
	capable   bool
	callReply any
	callErr   error

	sent   chan wire.Request
	events chan wire.Event
}

func newScriptedEndpoint() *scriptedEndpoint {
	return &scriptedEndpoint{
		capable:   true,
		callReply: "reply",
		sent:      make(chan wire.Request, 8),
		events:    make(chan wire.Event, 8),
	}
}

func (e *scriptedEndpoint) Call(ctx context.Context, req wire.Request, result any) error {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	if e.callErr != nil {
		return e.callErr
	}
	switch req.Type {
	case wire.TypeNew, wire.TypeGetSingleton, wire.TypeGetSingletonSync:
		e.mu.Lock()
		e.nextID++
		id := e.nextID
		e.mu.Unlock()
		*result.(*wire.CreateResult) = wire.CreateResult{ID: id, IsEventCapable: e.capable}
	case wire.TypeCall:
		if result != nil {
			*result.(*any) = e.callReply
		}
	}
	return nil
}

func (e *scriptedEndpoint) Send(req wire.Request) error {
	e.sent <- req
	return nil
}

func (e *scriptedEndpoint) CallSync(req wire.Request, result any) error {
	return e.Call(context.Background(), req, result)
}

func (e *scriptedEndpoint) Events() <-chan wire.Event { return e.events }

func (e *scriptedEndpoint) recorded() []wire.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]wire.Request(nil), e.requests...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testManager(endpoint *scriptedEndpoint) *Manager {
	m := NewManager(endpoint)
	m.Logger = testLogger()
	return m
}

func TestCreateObjectMintsTrackedStub(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	s, err := m.CreateObject(context.Background(), "Counter", "arg")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if s.ID() != 1 {
		t.Errorf("ID = %d, want 1", s.ID())
	}
	if !s.IsEventCapable() {
		t.Error("IsEventCapable = false, want true")
	}
	if m.StubCount() != 1 {
		t.Errorf("StubCount = %d, want 1", m.StubCount())
	}

	requests := endpoint.recorded()
	if len(requests) != 1 || requests[0].Type != wire.TypeNew || requests[0].ClassName != "Counter" {
		t.Errorf("requests = %+v", requests)
	}
	if len(requests[0].Args) != 1 || requests[0].Args[0] != "arg" {
		t.Errorf("args = %v, want [arg]", requests[0].Args)
	}
}

func TestGetSingletonCachesStub(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	first, err := m.GetSingleton(context.Background(), "Config")
	if err != nil {
		t.Fatalf("GetSingleton: %v", err)
	}
	second, err := m.GetSingleton(context.Background(), "Config")
	if err != nil {
		t.Fatalf("GetSingleton: %v", err)
	}
	if first != second {
		t.Error("second GetSingleton returned a different stub")
	}
	// The cached path performs no round trip.
	if requests := endpoint.recorded(); len(requests) != 1 {
		t.Errorf("round trips = %d, want 1", len(requests))
	}
}

func TestGetSingletonSyncSharesCache(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	first, err := m.GetSingletonSync("Config")
	if err != nil {
		t.Fatalf("GetSingletonSync: %v", err)
	}
	second, err := m.GetSingleton(context.Background(), "Config")
	if err != nil {
		t.Fatalf("GetSingleton: %v", err)
	}
	if first != second {
		t.Error("sync and async singleton lookups disagree")
	}

	requests := endpoint.recorded()
	if len(requests) != 1 || requests[0].Type != wire.TypeGetSingletonSync {
		t.Errorf("requests = %+v", requests)
	}
}

func TestStubCall(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	s, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	result, err := s.Call(context.Background(), "Increment", 5)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result != "reply" {
		t.Errorf("result = %v, want %q", result, "reply")
	}

	requests := endpoint.recorded()
	call := requests[len(requests)-1]
	if call.Type != wire.TypeCall || call.ID != s.ID() || call.Method != "Increment" {
		t.Errorf("call request = %+v", call)
	}
	if len(call.Args) != 1 || call.Args[0] != 5 {
		t.Errorf("call args = %v, want [5]", call.Args)
	}
}

func TestStubMethodCached(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	s, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}

	increment := s.Method("Increment")
	s.Method("Increment")
	s.Method("Value")
	if len(s.methods) != 2 {
		t.Errorf("cached methods = %d, want 2", len(s.methods))
	}

	if _, err := increment(context.Background(), 1); err != nil {
		t.Fatalf("bound call: %v", err)
	}
	requests := endpoint.recorded()
	call := requests[len(requests)-1]
	if call.Method != "Increment" || call.ID != s.ID() {
		t.Errorf("bound call request = %+v", call)
	}
}

func TestReleaseBatches(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	first, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	second, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}

	m.Release(first)
	m.Release(first) // idempotent
	m.Release(second)
	if m.StubCount() != 0 {
		t.Errorf("StubCount = %d after release, want 0", m.StubCount())
	}

	m.sweep()
	batch := testutil.RequireReceive(t, endpoint.sent, time.Second, "release batch")
	if batch.Type != wire.TypeRelease || len(batch.IDs) != 2 {
		t.Fatalf("batch = %+v", batch)
	}

	// Each id leaves in exactly one batch.
	m.sweep()
	testutil.RequireNoReceive(t, endpoint.sent, 50*time.Millisecond, "second batch")
}

func TestReleaseSingletonRefused(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	s, err := m.GetSingleton(context.Background(), "Config")
	if err != nil {
		t.Fatalf("GetSingleton: %v", err)
	}

	m.Release(s)
	m.sweep()
	testutil.RequireNoReceive(t, endpoint.sent, 50*time.Millisecond, "singleton must never be released")
	if m.StubCount() != 1 {
		t.Errorf("StubCount = %d, want 1", m.StubCount())
	}
}

func TestSweepReclaimsUnreferencedStubs(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)

	mint := func() uint64 {
		s, err := m.CreateObject(context.Background(), "Counter")
		if err != nil {
			t.Fatalf("CreateObject: %v", err)
		}
		return s.ID()
	}
	id := mint()

	// The stub escaped mint without surviving references; after
	// collection the weak table entry reports nil and the sweep queues
	// the id.
	deadline := time.Now().Add(5 * time.Second)
	for {
		runtime.GC()
		m.sweep()
		select {
		case batch := <-endpoint.sent:
			if batch.Type != wire.TypeRelease || len(batch.IDs) != 1 || batch.IDs[0] != id {
				t.Fatalf("batch = %+v", batch)
			}
			if m.StubCount() != 0 {
				t.Errorf("StubCount = %d after reclamation, want 0", m.StubCount())
			}
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("stub was never reclaimed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSweeperRunsOnClock(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)
	fakeClock := clock.Fake(time.Unix(1000, 0))
	m.Clock = fakeClock
	m.SweepInterval = time.Minute

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()
	fakeClock.WaitForTimers(1)

	s, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	m.Release(s)

	fakeClock.Advance(time.Minute)
	batch := testutil.RequireReceive(t, endpoint.sent, 5*time.Second, "sweep on tick")
	if batch.Type != wire.TypeRelease || len(batch.IDs) != 1 || batch.IDs[0] != s.ID() {
		t.Fatalf("batch = %+v", batch)
	}
}

func TestCloseFlushesPendingReleases(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)
	m.Clock = clock.Fake(time.Unix(1000, 0))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	m.Release(s)

	m.Close()
	batch := testutil.RequireReceive(t, endpoint.sent, time.Second, "final flush")
	if len(batch.IDs) != 1 || batch.IDs[0] != s.ID() {
		t.Fatalf("batch = %+v", batch)
	}
}

func TestStartTwiceFails(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)
	m.Clock = clock.Fake(time.Unix(1000, 0))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestEventDispatchToStub(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)
	m.Clock = clock.Fake(time.Unix(1000, 0))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()

	s, err := m.CreateObject(context.Background(), "Beacon")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}

	received := make(chan event.Event, 1)
	s.Subscribe("tick", func(evt event.Event) { received <- evt })

	endpoint.events <- wire.NewEvent(s.ID(), "tick", map[string]any{"n": 1})
	evt := testutil.RequireReceive(t, received, 5*time.Second, "forwarded event")
	if evt.Type != "tick" {
		t.Errorf("event type = %q, want tick", evt.Type)
	}
	detail, ok := evt.Detail.(map[string]any)
	if !ok || detail["n"] != 1 {
		t.Errorf("detail = %v", evt.Detail)
	}
}

func TestEventForNonEventCapableDropped(t *testing.T) {
	endpoint := newScriptedEndpoint()
	endpoint.capable = false
	m := testManager(endpoint)
	m.Clock = clock.Fake(time.Unix(1000, 0))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()

	s, err := m.CreateObject(context.Background(), "Counter")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	if s.IsEventCapable() {
		t.Fatal("stub should not be event-capable")
	}
	received := make(chan event.Event, 1)
	s.Emitter.Subscribe("tick", func(evt event.Event) { received <- evt })

	// A stray event for a non-event-capable stub never reaches local
	// listeners.
	endpoint.events <- wire.NewEvent(s.ID(), "tick", nil)
	testutil.RequireNoReceive(t, received, 50*time.Millisecond, "event on non-capable stub")
}

func TestEventForUnknownIDDropped(t *testing.T) {
	endpoint := newScriptedEndpoint()
	m := testManager(endpoint)
	m.Clock = clock.Fake(time.Unix(1000, 0))

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Close()

	s, err := m.CreateObject(context.Background(), "Beacon")
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	received := make(chan event.Event, 1)
	s.Subscribe("tick", func(evt event.Event) { received <- evt })

	// 999 was never minted; the event is dropped without disturbing
	// other stubs.
	endpoint.events <- wire.NewEvent(999, "tick", nil)
	endpoint.events <- wire.NewEvent(s.ID(), "tick", nil)

	evt := testutil.RequireReceive(t, received, 5*time.Second, "event for live stub")
	if evt.Type != "tick" {
		t.Errorf("event type = %q", evt.Type)
	}
	testutil.RequireNoReceive(t, received, 50*time.Millisecond, "no extra events")
}
