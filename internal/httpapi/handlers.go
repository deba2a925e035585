package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/config"
	"github.com/fleetdesk/wabridge/internal/dispatch"
	"github.com/fleetdesk/wabridge/internal/notify"
	"github.com/fleetdesk/wabridge/internal/status"
	"github.com/fleetdesk/wabridge/internal/store"
)

// Connections is the slice of the connection manager the API drives.
type Connections interface {
	Initialize(ctx context.Context, org string) error
	State(org string) status.Snapshot
	Disconnect(org string)
	Logout(ctx context.Context, org string) error
}

// Sender dispatches one outbound message.
type Sender interface {
	Send(ctx context.Context, org, phone, message string) (dispatch.Receipt, error)
}

// Notifier is the slice of the sweeper the API exposes.
type Notifier interface {
	RemindInvoice(ctx context.Context, org, invoiceID string) (dispatch.Receipt, error)
	SweepInvoiceReminders(ctx context.Context, org string) (notify.Summary, error)
	SweepTripAssignments(ctx context.Context, org string) (notify.Summary, error)
	SendDailySummary(ctx context.Context, org, orgName string, recipients []string) (notify.Summary, error)
}

// Handlers serves the dashboard-facing control API.
type Handlers struct {
	conns       Connections
	sender      Sender
	notifier    Notifier
	db          *store.DB
	tenants     *config.Tenants
	sendTimeout time.Duration
	logger      *zap.Logger
}

func NewHandlers(conns Connections, sender Sender, notifier Notifier, db *store.DB,
	tenants *config.Tenants, sendTimeout time.Duration, logger *zap.Logger) *Handlers {
	return &Handlers{
		conns:       conns,
		sender:      sender,
		notifier:    notifier,
		db:          db,
		tenants:     tenants,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// resolveOrg picks the organization from the request, defaulting to the
// sole tenant on single-tenant deployments. Unknown organizations are a
// validation error so typos never create phantom state.
func (h *Handlers) resolveOrg(requested string) (config.Tenant, error) {
	if requested == "" {
		if t, ok := h.tenants.Sole(); ok {
			return t, nil
		}
		return config.Tenant{}, fmt.Errorf("%w: organizationId is required", dispatch.ErrValidation)
	}
	t, ok := h.tenants.Get(requested)
	if !ok {
		return config.Tenant{}, fmt.Errorf("%w: unknown organization %q", dispatch.ErrValidation, requested)
	}
	return t, nil
}

type statusResponse struct {
	OrganizationID string `json:"organizationId"`
	Status         string `json:"status"`
	Connected      bool   `json:"connected"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	QRCode         string `json:"qrCode,omitempty"`
	LastError      string `json:"lastError,omitempty"`
	MessagesSent   int    `json:"messagesSent"`
	QueuedMessages int    `json:"queuedMessages"`
}

// Status reports the connection snapshot plus notification counters.
// Cold organizations report disconnected defaults; this endpoint never
// fails because a session was not initialized yet.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.resolveOrg(r.URL.Query().Get("organizationId"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap := h.conns.State(tenant.ID)
	sent, pending, err := h.db.NotificationCounts(tenant.ID)
	if err != nil {
		h.logger.Error("notification counts query failed",
			zap.String("org", tenant.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OrganizationID: tenant.ID,
		Status:         string(snap.Status),
		Connected:      snap.Status == status.Ready,
		PhoneNumber:    snap.PhoneNumber,
		QRCode:         snap.QRCode,
		LastError:      snap.LastError,
		MessagesSent:   sent,
		QueuedMessages: pending,
	})
}

type orgRequest struct {
	OrganizationID string `json:"organizationId"`
}

// Initialize starts a connection attempt and returns immediately. The
// dashboard polls Status to follow progress.
func (h *Handlers) Initialize(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.conns.Initialize(r.Context(), tenant.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"organizationId": tenant.ID,
		"status":         string(h.conns.State(tenant.ID).Status),
	})
}

type sendRequest struct {
	OrganizationID string `json:"organizationId"`
	Phone          string `json:"phoneNumber"`
	Message        string `json:"message"`
}

// Send dispatches a free-form message right away, outside the sweep
// pipeline. A manual notification record is written either way so the
// counters stay honest.
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.sendTimeout)
	defer cancel()

	receipt, err := h.sender.Send(ctx, tenant.ID, req.Phone, req.Message)
	h.recordManual(tenant.ID, req.Phone, req.Message, receipt, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"messageId":   receipt.MessageID,
		"phoneNumber": receipt.Phone,
	})
}

func (h *Handlers) recordManual(org, phone, msg string, receipt dispatch.Receipt, sendErr error) {
	n := &store.Notification{
		ID:             uuid.NewString(),
		Org:            org,
		Type:           store.TypeManual,
		RecipientPhone: phone,
		Message:        msg,
	}
	if sendErr != nil {
		n.Status = store.StatusFailed
		n.ErrorMessage = sendErr.Error()
	} else {
		n.Status = store.StatusSent
		n.RecipientPhone = receipt.Phone
		n.SentAt = time.Now().UnixMilli()
	}
	if err := h.db.InsertNotification(n); err != nil {
		h.logger.Error("failed to record manual notification",
			zap.String("org", org), zap.Error(err))
	}
}

type invoiceReminderRequest struct {
	OrganizationID string `json:"organizationId"`
	InvoiceID      string `json:"invoiceId"`
}

// InvoiceReminder renders and sends the reminder template for one
// invoice on operator request.
func (h *Handlers) InvoiceReminder(w http.ResponseWriter, r *http.Request) {
	var req invoiceReminderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.sendTimeout)
	defer cancel()

	receipt, err := h.notifier.RemindInvoice(ctx, tenant.ID, req.InvoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"messageId":   receipt.MessageID,
		"phoneNumber": receipt.Phone,
	})
}

// QRImage serves the current pairing code as a PNG for the dashboard.
func (h *Handlers) QRImage(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.resolveOrg(r.URL.Query().Get("organizationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	snap := h.conns.State(tenant.ID)
	if snap.Status != status.QRReady || snap.QRCode == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "no pairing code available", Code: "no_qr",
		})
		return
	}
	png, err := qrcode.Encode(snap.QRCode, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// Logout invalidates the session and deletes durable credentials.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.conns.Logout(r.Context(), tenant.ID); err != nil {
		writeError(w, fmt.Errorf("%w: %v", dispatch.ErrValidation, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"organizationId": tenant.ID, "status": "logged_out"})
}

// Disconnect tears the client down but keeps credentials for a later
// silent reconnect.
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	var req orgRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.conns.Disconnect(tenant.ID)
	writeJSON(w, http.StatusOK, map[string]string{"organizationId": tenant.ID, "status": "disconnected"})
}

type sweepRequest struct {
	OrganizationID string `json:"organizationId"`
	Kind           string `json:"kind"`
}

type sweepResponse struct {
	Kind      string   `json:"kind"`
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Sweep triggers one sweep on demand, the external-cron escape hatch for
// deployments that disable the built-in scheduler.
func (h *Handlers) Sweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}

	var sum notify.Summary
	switch req.Kind {
	case "invoice_reminders":
		sum, err = h.notifier.SweepInvoiceReminders(r.Context(), tenant.ID)
	case "trip_assignments":
		sum, err = h.notifier.SweepTripAssignments(r.Context(), tenant.ID)
	case "daily_summary":
		sum, err = h.notifier.SendDailySummary(r.Context(), tenant.ID, tenant.Name, tenant.SummaryRecipients)
	default:
		writeError(w, fmt.Errorf("%w: unknown sweep kind %q", dispatch.ErrValidation, req.Kind))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{
		Kind:      string(sum.Kind),
		Processed: sum.Processed,
		Sent:      sum.Sent,
		Failed:    sum.Failed,
		Errors:    sum.Errors,
	})
}

type tripPayload struct {
	ID          string `json:"id"`
	DriverName  string `json:"driverName"`
	DriverPhone string `json:"driverPhone"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	ScheduledAt int64  `json:"scheduledAt"`
	Status      string `json:"status"`
}

type syncTripsRequest struct {
	OrganizationID string        `json:"organizationId"`
	Trips          []tripPayload `json:"trips"`
}

// SyncTrips upserts dashboard-owned trip records. The notified flag pair
// is never overwritten; it belongs to the notification pipeline.
func (h *Handlers) SyncTrips(w http.ResponseWriter, r *http.Request) {
	var req syncTripsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, p := range req.Trips {
		if p.ID == "" {
			writeError(w, fmt.Errorf("%w: trip with empty id", dispatch.ErrValidation))
			return
		}
		err := h.db.UpsertTrip(&store.Trip{
			ID:          p.ID,
			Org:         tenant.ID,
			DriverName:  p.DriverName,
			DriverPhone: p.DriverPhone,
			Origin:      p.Origin,
			Destination: p.Destination,
			ScheduledAt: p.ScheduledAt,
			Status:      p.Status,
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": len(req.Trips)})
}

type invoicePayload struct {
	ID              string `json:"id"`
	Number          string `json:"number"`
	CustomerName    string `json:"customerName"`
	CustomerPhone   string `json:"customerPhone"`
	AmountCents     int64  `json:"amountCents"`
	BalanceCents    int64  `json:"balanceCents"`
	DueDate         int64  `json:"dueDate"`
	Status          string `json:"status"`
	MaxReminderDate int64  `json:"maxReminderDate"`
}

type syncInvoicesRequest struct {
	OrganizationID string           `json:"organizationId"`
	Invoices       []invoicePayload `json:"invoices"`
}

// SyncInvoices upserts dashboard-owned invoice records; the reminder
// flag pair survives updates.
func (h *Handlers) SyncInvoices(w http.ResponseWriter, r *http.Request) {
	var req syncInvoicesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tenant, err := h.resolveOrg(req.OrganizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, p := range req.Invoices {
		if p.ID == "" {
			writeError(w, fmt.Errorf("%w: invoice with empty id", dispatch.ErrValidation))
			return
		}
		err := h.db.UpsertInvoice(&store.Invoice{
			ID:              p.ID,
			Org:             tenant.ID,
			Number:          p.Number,
			CustomerName:    p.CustomerName,
			CustomerPhone:   p.CustomerPhone,
			AmountCents:     p.AmountCents,
			BalanceCents:    p.BalanceCents,
			DueDate:         p.DueDate,
			Status:          p.Status,
			MaxReminderDate: p.MaxReminderDate,
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": len(req.Invoices)})
}

// Health answers liveness probes without auth.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", dispatch.ErrValidation, err)
	}
	return nil
}
