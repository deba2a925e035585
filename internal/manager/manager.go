package manager

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/lock"
	"github.com/fleetdesk/wabridge/internal/session"
	"github.com/fleetdesk/wabridge/internal/status"
	"github.com/fleetdesk/wabridge/internal/wa"
)

// ErrInitializeInFlight is returned when an initialize is requested for
// an organization whose connection is not in a terminal state. The
// dashboard polls aggressively and may fire the same command from
// several requests at once; only the first may construct a client.
var ErrInitializeInFlight = errors.New("connection attempt already in flight")

// Session is the slice of the WhatsApp adapter the manager drives.
// *wa.Adapter implements it; tests substitute fakes.
type Session interface {
	IsLoggedIn() bool
	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	Close() error
	SendText(ctx context.Context, phone, text string) (string, error)
	IsRegistered(ctx context.Context, phone string) (bool, error)
	StartQRAuth(ctx context.Context) (<-chan wa.AuthEvent, error)
}

// Factory constructs a Session for an organization and wires its event
// handler to the given machine.
type Factory func(ctx context.Context, org string, machine *status.Machine) (Session, error)

// Connection holds one organization's live session state.
type Connection struct {
	org     string
	machine *status.Machine
	session Session
	flock   *lock.Lock
}

// Manager owns at most one WhatsApp session per organization and drives
// each through its connection state machine.
type Manager struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	factory Factory
	dataDir string
	bus     *bus.Bus
	logger  *zap.Logger
}

// New creates a manager. Connections are constructed lazily on the
// first Initialize per organization.
func New(factory Factory, dataDir string, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{
		conns:   make(map[string]*Connection),
		factory: factory,
		dataDir: dataDir,
		bus:     b,
		logger:  logger,
	}
}

// Initialize starts a connection attempt for an organization and returns
// immediately; progress is observed via State. Returns
// ErrInitializeInFlight when a connection already exists in a
// non-terminal state, so concurrent initialize calls construct at most
// one underlying client.
func (m *Manager) Initialize(ctx context.Context, org string) error {
	if err := session.ValidateOrg(org); err != nil {
		return err
	}

	m.mu.Lock()

	conn := m.conns[org]
	if conn != nil {
		cur := conn.machine.Current()
		if cur != status.Disconnected && cur != status.AuthFailure {
			m.mu.Unlock()
			m.logger.Info("initialize ignored, connection already active",
				zap.String("org", org), zap.String("state", string(cur)))
			return ErrInitializeInFlight
		}
		// Stale session from a previous attempt; replace it.
		if conn.session != nil {
			_ = conn.session.Close()
			conn.session = nil
		}
	} else {
		if err := session.EnsureOrgDir(m.dataDir, org); err != nil {
			m.mu.Unlock()
			return err
		}
		fl, err := lock.Acquire(session.OrgDir(m.dataDir, org))
		if err != nil {
			m.mu.Unlock()
			return err
		}
		conn = &Connection{
			org:     org,
			machine: status.NewMachine(org, m.bus),
			flock:   fl,
		}
		m.conns[org] = conn
	}

	// Mark the attempt in flight before releasing the lock, then build
	// the client outside it: the factory opens the credential database
	// and State must stay non-blocking while that I/O runs.
	_ = conn.machine.Transition(status.Connecting)
	m.mu.Unlock()

	sess, err := m.factory(ctx, org, conn.machine)
	if err != nil {
		_ = conn.machine.Fail("initialize: " + err.Error())
		return err
	}

	m.mu.Lock()
	if conn.machine.Current() != status.Connecting {
		// The attempt was torn down while the client was being built.
		m.mu.Unlock()
		_ = sess.Close()
		return nil
	}
	conn.session = sess
	m.mu.Unlock()

	m.logger.Info("connection attempt started", zap.String("org", org),
		zap.Bool("has_credentials", sess.IsLoggedIn()))
	go m.run(conn)
	return nil
}

// run drives startup in the background. With durable credentials the
// connect is silent and the event handler walks the machine to ready
// without ever entering qr_ready; otherwise the QR pairing flow runs
// until a terminal event.
func (m *Manager) run(conn *Connection) {
	if conn.session.IsLoggedIn() {
		if err := conn.session.Connect(); err != nil {
			m.logger.Error("silent reconnect failed",
				zap.String("org", conn.org), zap.Error(err))
			_ = conn.machine.Fail("connect: " + err.Error())
		}
		return
	}

	authCh, err := conn.session.StartQRAuth(context.Background())
	if err != nil {
		_ = conn.machine.Fail("start pairing: " + err.Error())
		return
	}
	for evt := range authCh {
		switch evt.Type {
		case wa.AuthEventQRCode:
			_ = conn.machine.ToQR(evt.QRCode)
		case wa.AuthEventAuthenticated:
			_ = conn.machine.Transition(status.Authenticated)
		case wa.AuthEventTimeout, wa.AuthEventFailed:
			// No automatic pairing retry: a fresh operator initialize
			// is required, which prevents silent QR-churn loops.
			_ = conn.machine.Fail(evt.Message)
		}
	}
}

// State returns the connection snapshot for an organization. Cold
// organizations report disconnected defaults. Never blocks on I/O.
func (m *Manager) State(org string) status.Snapshot {
	m.mu.RLock()
	conn := m.conns[org]
	m.mu.RUnlock()
	if conn == nil {
		return status.Snapshot{Status: status.Disconnected}
	}
	return conn.machine.Snapshot()
}

// Transport returns the live session for an organization, if any. The
// dispatcher uses it for the actual provider calls.
func (m *Manager) Transport(org string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn := m.conns[org]
	if conn == nil || conn.session == nil {
		return nil, false
	}
	return conn.session, true
}

// Disconnect tears down an organization's client. Durable credentials
// stay in place so a later initialize can reconnect silently.
func (m *Manager) Disconnect(org string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn := m.conns[org]
	if conn == nil || conn.session == nil {
		return
	}
	conn.session.Disconnect()
	_ = conn.session.Close()
	conn.session = nil
	if conn.machine.Current() != status.Disconnected {
		_ = conn.machine.Drop("operator disconnect")
	}
}

// Logout invalidates the session and deletes the durable credential
// blob; the next initialize requires a fresh pairing.
func (m *Manager) Logout(ctx context.Context, org string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn := m.conns[org]
	if conn == nil || conn.session == nil {
		return errors.New("no active session to log out")
	}
	err := conn.session.Logout(ctx)
	_ = conn.session.Close()
	conn.session = nil
	if conn.machine.Current() != status.Disconnected {
		_ = conn.machine.Drop("logged out by operator")
	}
	return err
}

// Shutdown disconnects every organization and releases session locks.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for org, conn := range m.conns {
		if conn.session != nil {
			conn.session.Disconnect()
			_ = conn.session.Close()
			conn.session = nil
		}
		if err := conn.flock.Release(); err != nil {
			m.logger.Warn("error releasing session lock",
				zap.String("org", org), zap.Error(err))
		}
	}
}

// NewAdapterFactory returns the production Factory: it builds a
// wa.Adapter against the organization's credential database and
// registers an event handler bound to the machine.
func NewAdapterFactory(dataDir string, b *bus.Bus, logger *zap.Logger) Factory {
	return func(ctx context.Context, org string, machine *status.Machine) (Session, error) {
		adapter, err := wa.NewAdapter(ctx, org, session.CredentialDBPath(dataDir, org), b, logger)
		if err != nil {
			return nil, err
		}
		handler := wa.NewEventHandler(org, b, machine, adapter, logger)
		adapter.RegisterEventHandler(handler.Handle)
		return adapter, nil
	}
}
