package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/fleetdesk/wabridge/internal/bus"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client for one organization's session. The
// pairing credential blob lives in credDBPath and is owned entirely by
// whatsmeow; nothing else in the daemon reads it.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	org       string
}

// NewAdapter creates a WhatsApp adapter bound to an organization's
// credential database.
func NewAdapter(ctx context.Context, org, credDBPath string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("FleetDesk Bridge", [3]uint32{1, 0, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", credDBPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)
	// Reconnects are operator-driven through the manager; a self-healing
	// client would emit Connected while the machine records disconnected.
	client.EnableAutoReconnect = false

	return &Adapter{
		client:    client,
		container: container,
		bus:       b,
		logger:    logger,
		org:       org,
	}, nil
}

// IsLoggedIn reports whether durable pairing credentials exist.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp", zap.String("org", a.org))
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection. Durable credentials are
// left in place so the next connect can reattach silently.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp", zap.String("org", a.org))
	a.client.Disconnect()
}

// Logout invalidates the session and deletes the durable credential
// blob. The next initialize requires a fresh pairing.
func (a *Adapter) Logout(ctx context.Context) error {
	a.logger.Info("logging out of WhatsApp", zap.String("org", a.org))
	return a.client.Logout(ctx)
}

// Close releases the credential store connection.
func (a *Adapter) Close() error {
	a.client.Disconnect()
	return a.container.Close()
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// PhoneNumber returns the paired phone number, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// SendText sends a text message to a digits-only phone number. Returns
// the server message ID.
func (a *Adapter) SendText(ctx context.Context, phone, text string) (string, error) {
	to := types.JID{User: phone, Server: types.DefaultUserServer}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// IsRegistered checks whether a digits-only phone number is a registered
// WhatsApp account.
func (a *Adapter) IsRegistered(ctx context.Context, phone string) (bool, error) {
	resp, err := a.client.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return false, fmt.Errorf("registration check: %w", err)
	}
	if len(resp) == 0 {
		return false, nil
	}
	return resp[0].IsIn, nil
}

// GetQRChannel returns the pairing QR channel. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}
