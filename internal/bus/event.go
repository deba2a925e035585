package bus

import "time"

// Event kinds published by the daemon, grouped by namespace prefix:
//
//	connection.*  state machine transitions and pairing progress
//	wa.*          inbound transport events
//	notify.*      sweep results and dispatch outcomes
const (
	KindStatusChanged = "connection.status_changed"
	KindQRGenerated   = "connection.qr_generated"
	KindInbound       = "wa.message"
	KindSweepDone     = "notify.sweep_done"
	KindDispatched    = "notify.dispatched"
)

// Event is a domain event scoped to one organization's session.
type Event struct {
	Kind      string
	Org       string
	Timestamp time.Time
	Payload   any
}
