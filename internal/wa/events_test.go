package wa

import (
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/status"
)

type fakePhone string

func (f fakePhone) PhoneNumber() string { return string(f) }

func walkTo(t *testing.T, m *status.Machine, states ...status.State) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s failed: %v", s, err)
		}
	}
}

func newHandler(m *status.Machine, b *bus.Bus) *EventHandler {
	return NewEventHandler("acme", b, m, fakePhone("5511999990000"), zap.NewNop())
}

// TestConnectedFromConnecting covers the silent reconnect path: the
// handshake completes without a QR stage and the machine lands on ready.
func TestConnectedFromConnecting(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	walkTo(t, m, status.Connecting)

	h.Handle(&events.Connected{})

	snap := m.Snapshot()
	if snap.Status != status.Ready {
		t.Errorf("state = %s, want ready", snap.Status)
	}
	if snap.PhoneNumber != "5511999990000" {
		t.Errorf("PhoneNumber = %q, want paired number", snap.PhoneNumber)
	}
	if snap.QRCode != "" {
		t.Error("QRCode must be empty in ready state")
	}
}

// TestConnectedAfterQRScan covers the first-pairing path: the operator
// scanned while the machine sat in qr_ready.
func TestConnectedAfterQRScan(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	walkTo(t, m, status.Connecting)
	if err := m.ToQR("payload"); err != nil {
		t.Fatal(err)
	}

	h.Handle(&events.Connected{})

	if m.Current() != status.Ready {
		t.Errorf("state = %s, want ready", m.Current())
	}
}

// TestConnectedAfterDrop covers a Connected event arriving after the
// machine already recorded a transport drop: the machine must walk back
// to ready instead of discarding the event and reporting disconnected
// against a live client.
func TestConnectedAfterDrop(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	walkTo(t, m, status.Connecting)
	h.Handle(&events.Connected{})
	h.Handle(&events.Disconnected{})
	if m.Current() != status.Disconnected {
		t.Fatalf("state = %s, want disconnected after drop", m.Current())
	}

	h.Handle(&events.Connected{})

	snap := m.Snapshot()
	if snap.Status != status.Ready {
		t.Errorf("state = %s, want ready after reconnect", snap.Status)
	}
	if snap.PhoneNumber != "5511999990000" {
		t.Errorf("PhoneNumber = %q, want paired number", snap.PhoneNumber)
	}
}

func TestDisconnectedDropsToDisconnected(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	walkTo(t, m, status.Connecting)
	h.Handle(&events.Connected{})
	h.Handle(&events.Disconnected{})

	snap := m.Snapshot()
	if snap.Status != status.Disconnected {
		t.Errorf("state = %s, want disconnected", snap.Status)
	}
	if snap.PhoneNumber != "" {
		t.Error("PhoneNumber must be cleared on disconnect")
	}
}

func TestLoggedOutFails(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	walkTo(t, m, status.Connecting)
	h.Handle(&events.Connected{})
	h.Handle(&events.LoggedOut{})

	snap := m.Snapshot()
	if snap.Status != status.AuthFailure {
		t.Errorf("state = %s, want auth_failure", snap.Status)
	}
	if snap.LastError == "" {
		t.Error("LastError must record the logout reason")
	}
}

func TestInboundMessagePublished(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	ch, unsub := b.Subscribe(bus.KindInbound, 10)
	defer unsub()

	sender := types.JID{User: "5511988880000", Server: types.DefaultUserServer}
	h.Handle(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: sender, Sender: sender},
			ID:            "m1",
			Timestamp:     time.Now(),
		},
		Message: &waE2E.Message{Conversation: proto.String("ok, confirmed")},
	})

	select {
	case evt := <-ch:
		in, ok := evt.Payload.(InboundMessage)
		if !ok {
			t.Fatalf("payload type = %T, want InboundMessage", evt.Payload)
		}
		if in.SenderPhone != "5511988880000" {
			t.Errorf("SenderPhone = %q", in.SenderPhone)
		}
		if in.Body != "ok, confirmed" {
			t.Errorf("Body = %q", in.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for wa.message event")
	}
}

func TestOwnMessagesIgnored(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	ch, unsub := b.Subscribe(bus.KindInbound, 10)
	defer unsub()

	sender := types.JID{User: "5511988880000", Server: types.DefaultUserServer}
	h.Handle(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: sender, Sender: sender, IsFromMe: true},
		},
		Message: &waE2E.Message{Conversation: proto.String("echo of our own send")},
	})

	select {
	case evt := <-ch:
		t.Errorf("own message published: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGroupMessagesIgnored(t *testing.T) {
	b := bus.New()
	m := status.NewMachine("acme", b)
	h := newHandler(m, b)

	ch, unsub := b.Subscribe(bus.KindInbound, 10)
	defer unsub()

	group := types.JID{User: "123456-789", Server: types.GroupServer}
	sender := types.JID{User: "5511988880000", Server: types.DefaultUserServer}
	h.Handle(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: group, Sender: sender},
		},
		Message: &waE2E.Message{Conversation: proto.String("group chatter")},
	})

	select {
	case evt := <-ch:
		t.Errorf("group message published: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
