package wa

import (
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/status"
)

// phoneSource supplies the paired phone number once the handshake is done.
type phoneSource interface {
	PhoneNumber() string
}

// EventHandler translates whatsmeow events into state machine
// transitions and bus events. Raw provider events never reach other
// components; consumers observe the machine snapshot or subscribe to
// wa.* events.
type EventHandler struct {
	org     string
	bus     *bus.Bus
	machine *status.Machine
	phone   phoneSource
	logger  *zap.Logger
}

// NewEventHandler creates an event handler for one organization's session.
func NewEventHandler(org string, b *bus.Bus, machine *status.Machine, phone phoneSource, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		org:     org,
		bus:     b,
		machine: machine,
		phone:   phone,
		logger:  logger,
	}
}

// Handle is the whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		h.logger.Info("WhatsApp connected", zap.String("org", h.org))
		cur := h.machine.Current()
		if cur == status.Disconnected {
			// The transport came back after a drop the machine already
			// recorded; walk it forward so the snapshot tracks the client.
			_ = h.machine.Transition(status.Connecting)
			cur = status.Connecting
		}
		if cur == status.Connecting || cur == status.QRReady {
			_ = h.machine.Transition(status.Authenticated)
		}
		_ = h.machine.ToReady(h.phone.PhoneNumber())
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected", zap.String("org", h.org))
		_ = h.machine.Drop("transport disconnected")
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp session logged out",
			zap.String("org", h.org), zap.String("reason", evt.Reason.String()))
		_ = h.machine.Fail("logged out: " + evt.Reason.String())
	case *events.StreamReplaced:
		h.logger.Warn("WhatsApp stream replaced by another client", zap.String("org", h.org))
		_ = h.machine.Fail("stream replaced by another client")
	case *events.Message:
		h.handleMessage(evt)
	}
}

// InboundMessage is the normalized payload published on wa.message.
type InboundMessage struct {
	SenderPhone string
	Body        string
	MsgID       string
	Timestamp   int64
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	// Only direct 1:1 replies matter to the notification pipeline.
	if evt.Info.IsFromMe || evt.Info.Chat.Server != types.DefaultUserServer {
		return
	}
	body := extractTextBody(evt)
	if body == "" {
		return
	}
	h.bus.Emit(bus.KindInbound, h.org, InboundMessage{
		SenderPhone: evt.Info.Sender.ToNonAD().User,
		Body:        body,
		MsgID:       evt.Info.ID,
		Timestamp:   evt.Info.Timestamp.UnixMilli(),
	})
}

func extractTextBody(evt *events.Message) string {
	msg := evt.Message
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}
