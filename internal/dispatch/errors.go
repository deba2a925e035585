package dispatch

import "errors"

// Sentinel errors classifying send failures. Callers branch with
// errors.Is; only ErrTransport is worth retrying on a later run.
var (
	// ErrNotReady: the connection is not in ready state. The caller
	// queues for later; the transport was never touched.
	ErrNotReady = errors.New("whatsapp connection not ready")

	// ErrRecipientUnavailable: the destination is not a registered
	// WhatsApp account. Expected and non-fatal; record it and move on.
	ErrRecipientUnavailable = errors.New("recipient is not a registered whatsapp account")

	// ErrTransport: transient network or provider failure.
	ErrTransport = errors.New("transport failure")

	// ErrValidation: malformed phone number or message. Never reaches
	// the transport.
	ErrValidation = errors.New("invalid send request")
)
