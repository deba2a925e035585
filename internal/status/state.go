package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fleetdesk/wabridge/internal/bus"
)

// State represents a connection lifecycle state.
type State string

const (
	Disconnected  State = "disconnected"
	Connecting    State = "connecting"
	QRReady       State = "qr_ready"
	Authenticated State = "authenticated"
	Ready         State = "ready"
	AuthFailure   State = "auth_failure"
)

// validTransitions defines allowed state transitions. QRReady allows a
// self-loop because the transport rotates the pairing code every few
// seconds while the operator has not scanned yet.
var validTransitions = map[State][]State{
	Disconnected:  {Connecting, AuthFailure},
	Connecting:    {QRReady, Authenticated, Disconnected, AuthFailure},
	QRReady:       {QRReady, Authenticated, Disconnected, AuthFailure},
	Authenticated: {Ready, Disconnected, AuthFailure},
	Ready:         {Disconnected, AuthFailure},
	AuthFailure:   {Connecting, Disconnected, AuthFailure},
}

// Snapshot is an immutable view of one organization's connection state.
// Invariants: QRCode is non-empty only while Status is QRReady;
// PhoneNumber is non-empty only while Status is Ready.
type Snapshot struct {
	Status      State
	QRCode      string
	PhoneNumber string
	LastError   string
}

// Machine tracks and enforces connection state transitions for one
// organization. Transitions publish connection.status_changed events.
type Machine struct {
	mu   sync.RWMutex
	org  string
	snap Snapshot
	bus  *bus.Bus
}

// NewMachine creates a machine starting in Disconnected state.
func NewMachine(org string, b *bus.Bus) *Machine {
	return &Machine{
		org:  org,
		snap: Snapshot{Status: Disconnected},
		bus:  b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.Status
}

// Snapshot returns a copy of the current connection state. Never blocks
// on anything beyond the internal mutex.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed from the current state.
func (m *Machine) Transition(to State) error {
	return m.apply(to, func(s *Snapshot) {})
}

// ToQR moves to QRReady carrying the pairing payload the operator scans.
func (m *Machine) ToQR(code string) error {
	err := m.apply(QRReady, func(s *Snapshot) { s.QRCode = code })
	if err == nil && m.bus != nil {
		m.bus.Emit(bus.KindQRGenerated, m.org, code)
	}
	return err
}

// ToReady moves to Ready with the paired phone number and clears any
// stale diagnostic.
func (m *Machine) ToReady(phone string) error {
	return m.apply(Ready, func(s *Snapshot) {
		s.PhoneNumber = phone
		s.LastError = ""
	})
}

// Fail moves to AuthFailure recording the reason. Recovery requires an
// operator-triggered initialize; the machine never retries pairing on
// its own.
func (m *Machine) Fail(reason string) error {
	return m.apply(AuthFailure, func(s *Snapshot) { s.LastError = reason })
}

// Drop moves to Disconnected recording why the transport went away. The
// durable credential blob is untouched, so a later initialize can
// attempt a silent reconnect.
func (m *Machine) Drop(reason string) error {
	return m.apply(Disconnected, func(s *Snapshot) { s.LastError = reason })
}

func (m *Machine) apply(to State, mutate func(*Snapshot)) error {
	m.mu.Lock()

	allowed := validTransitions[m.snap.Status]
	if !slices.Contains(allowed, to) {
		from := m.snap.Status
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}

	from := m.snap.Status
	m.snap.Status = to
	// Enforce snapshot invariants before applying the mutation for the
	// target state.
	if to != QRReady {
		m.snap.QRCode = ""
	}
	if to != Ready {
		m.snap.PhoneNumber = ""
	}
	mutate(&m.snap)
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Org:       m.org,
			Timestamp: time.Now(),
			Payload:   Change{From: from, To: to},
		})
	}
	return nil
}

// Change is the payload for status change events.
type Change struct {
	From State
	To   State
}
