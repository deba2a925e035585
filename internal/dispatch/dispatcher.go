package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/status"
)

// MaxMessageLen bounds a single outbound text message.
const MaxMessageLen = 4096

// Transport is the provider-facing slice the dispatcher needs.
type Transport interface {
	SendText(ctx context.Context, phone, text string) (string, error)
	IsRegistered(ctx context.Context, phone string) (bool, error)
}

// ConnectionSource exposes per-organization connection state and the
// live transport. The connection manager satisfies it.
type ConnectionSource interface {
	State(org string) status.Snapshot
	Transport(org string) (Transport, bool)
}

// Receipt reports a successful send.
type Receipt struct {
	MessageID string
	Phone     string
}

// Dispatcher delivers one message to one recipient. It enforces
// readiness and normalizes the destination but performs no retries and
// mutates no records; queueing and idempotency belong to the caller.
type Dispatcher struct {
	conns  ConnectionSource
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a dispatcher.
func New(conns ConnectionSource, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{conns: conns, bus: b, logger: logger}
}

// Send delivers message to phone via the organization's connection.
// Failures are classified by the package sentinel errors.
func (d *Dispatcher) Send(ctx context.Context, org, phone, message string) (Receipt, error) {
	digits, err := NormalizePhone(phone)
	if err != nil {
		return Receipt{}, err
	}
	if message == "" {
		return Receipt{}, fmt.Errorf("%w: empty message", ErrValidation)
	}
	if len(message) > MaxMessageLen {
		return Receipt{}, fmt.Errorf("%w: message exceeds %d bytes", ErrValidation, MaxMessageLen)
	}

	if d.conns.State(org).Status != status.Ready {
		return Receipt{}, ErrNotReady
	}
	transport, ok := d.conns.Transport(org)
	if !ok {
		return Receipt{}, ErrNotReady
	}

	registered, err := transport.IsRegistered(ctx, digits)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if !registered {
		return Receipt{}, fmt.Errorf("%w: %s", ErrRecipientUnavailable, digits)
	}

	// Re-check right before the provider call: the connection may have
	// been torn down while the registration check was in flight.
	if d.conns.State(org).Status != status.Ready {
		return Receipt{}, ErrNotReady
	}

	msgID, err := transport.SendText(ctx, digits, message)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	d.logger.Info("message dispatched",
		zap.String("org", org),
		zap.String("phone", digits),
		zap.String("message_id", msgID))
	d.bus.Emit(bus.KindDispatched, org, map[string]string{
		"phone":      digits,
		"message_id": msgID,
	})
	return Receipt{MessageID: msgID, Phone: digits}, nil
}
