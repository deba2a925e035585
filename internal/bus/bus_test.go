package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("connection.", 10)
	defer unsub()

	b.Emit(KindStatusChanged, "acme", "test")

	select {
	case evt := <-ch:
		if evt.Kind != KindStatusChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindStatusChanged)
		}
		if evt.Org != "acme" {
			t.Errorf("got org %q, want acme", evt.Org)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("notify.", 10)
	defer unsub()

	b.Emit(KindStatusChanged, "acme", nil)
	b.Emit(KindSweepDone, "acme", nil)

	select {
	case evt := <-ch:
		if evt.Kind != KindSweepDone {
			t.Errorf("got kind %q, want %q", evt.Kind, KindSweepDone)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// The connection event must not have been delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("connection.", 10)
	unsub()
	// Calling unsub again must not panic.
	unsub()

	b.Emit(KindStatusChanged, "acme", nil)

	select {
	case evt, ok := <-ch:
		if ok {
			t.Errorf("received event after unsubscribe: %v", evt)
		}
	case <-time.After(50 * time.Millisecond):
		t.Error("channel not closed after unsubscribe")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("wa.", 1)
	defer unsub()

	b.Emit(KindInbound, "acme", "one")
	// Buffer is full, this one is dropped.
	b.Emit(KindInbound, "acme", "two")

	evt := <-ch
	if evt.Payload != "one" {
		t.Errorf("got payload %v, want one", evt.Payload)
	}
}
