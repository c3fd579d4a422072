// Copyright 2026 The Remora Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"reflect"
	"testing"
)

func TestSubscribeDispatchOrder(t *testing.T) {
	emitter := NewEmitter()

	var order []string
	emitter.Subscribe("tick", func(evt Event) { order = append(order, "first") })
	emitter.Subscribe("tick", func(evt Event) { order = append(order, "second") })
	emitter.Subscribe("other", func(evt Event) { order = append(order, "wrong-type") })

	emitter.Dispatch(Event{Type: "tick", Detail: 1})

	want := []string{"first", "second"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("listener order = %v, want %v", order, want)
	}
}

func TestUnsubscribe(t *testing.T) {
	emitter := NewEmitter()

	calls := 0
	id := emitter.Subscribe("tick", func(evt Event) { calls++ })

	emitter.Dispatch(Event{Type: "tick"})
	emitter.Unsubscribe("tick", id)
	emitter.Dispatch(Event{Type: "tick"})

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}

	// Unknown ids are a no-op.
	emitter.Unsubscribe("tick", 9999)
	emitter.Unsubscribe("never-subscribed", 1)
}

func TestAfterDispatchRunsAfterListeners(t *testing.T) {
	emitter := NewEmitter()

	var order []string
	emitter.AfterDispatch(func(evt Event) { order = append(order, "hook") })
	emitter.Subscribe("tick", func(evt Event) { order = append(order, "listener") })

	emitter.Dispatch(Event{Type: "tick"})

	want := []string{"listener", "hook"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("dispatch order = %v, want %v", order, want)
	}
}

func TestAfterDispatchCancel(t *testing.T) {
	emitter := NewEmitter()

	hookCalls := 0
	cancel := emitter.AfterDispatch(func(evt Event) { hookCalls++ })

	emitter.Dispatch(Event{Type: "tick"})
	cancel()
	emitter.Dispatch(Event{Type: "tick"})
	cancel() // second cancel is safe

	if hookCalls != 1 {
		t.Errorf("hook called %d times, want 1", hookCalls)
	}
}

func TestHookSeesEveryEventType(t *testing.T) {
	emitter := NewEmitter()

	var seen []string
	emitter.AfterDispatch(func(evt Event) { seen = append(seen, evt.Type) })

	emitter.Dispatch(Event{Type: "tick"})
	emitter.Dispatch(Event{Type: "tock"})

	want := []string{"tick", "tock"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("hook saw %v, want %v", seen, want)
	}
}
