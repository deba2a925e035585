package notify

import (
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/store"
	"github.com/fleetdesk/wabridge/internal/wa"
)

// ResponseListener matches inbound messages to the most recent open
// notification for the sender's phone and marks it responded. This is
// how a driver's "OK" lands back on the trip assignment record.
type ResponseListener struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	unsub  func()
	done   chan struct{}
}

// NewResponseListener creates a listener. Call Start to begin consuming.
func NewResponseListener(db *store.DB, b *bus.Bus, logger *zap.Logger) *ResponseListener {
	return &ResponseListener{db: db, bus: b, logger: logger}
}

// Start subscribes to inbound transport events.
func (l *ResponseListener) Start() {
	ch, unsub := l.bus.Subscribe(bus.KindInbound, 64)
	l.unsub = unsub
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		for evt := range ch {
			l.handle(evt)
		}
	}()
}

// Stop unsubscribes and waits for queued events to drain.
func (l *ResponseListener) Stop() {
	if l.unsub == nil {
		return
	}
	l.unsub()
	<-l.done
}

func (l *ResponseListener) handle(evt bus.Event) {
	in, ok := evt.Payload.(wa.InboundMessage)
	if !ok {
		return
	}
	n, err := l.db.LatestOpenNotification(evt.Org, in.SenderPhone)
	if err != nil {
		l.logger.Error("failed to look up notification for response",
			zap.String("org", evt.Org), zap.Error(err))
		return
	}
	if n == nil {
		// Unsolicited message; nothing to acknowledge.
		return
	}
	if err := l.db.MarkNotificationResponded(n.ID, in.Body); err != nil {
		l.logger.Error("failed to mark notification responded",
			zap.String("org", evt.Org), zap.String("notification", n.ID), zap.Error(err))
		return
	}
	l.logger.Info("notification response recorded",
		zap.String("org", evt.Org),
		zap.String("notification", n.ID),
		zap.String("type", string(n.Type)))
}
