package wa

import (
	"context"
)

// AuthEventType enumerates pairing lifecycle events.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventFailed        AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents one step of the QR pairing flow.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins the QR pairing flow and streams its progress. The
// caller reads until the channel closes; the channel ends after the
// first terminal event (authenticated, failure or timeout).
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventFailed, Message: err.Error()}
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				out <- AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}
			case "success":
				out <- AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}
				return
			case "timeout":
				out <- AuthEvent{Type: AuthEventTimeout, Message: "QR code timed out before scan"}
				return
			default:
				if item.Error != nil {
					out <- AuthEvent{Type: AuthEventFailed, Message: item.Error.Error()}
					return
				}
			}
		}
	}()

	return out, nil
}
