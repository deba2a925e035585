package store

// NotificationType classifies the business event behind an outbound send.
type NotificationType string

const (
	TypeTripAssignment  NotificationType = "trip_assignment"
	TypeInvoiceReminder NotificationType = "invoice_reminder"
	TypeDailySummary    NotificationType = "daily_summary"
	TypeManual          NotificationType = "manual"
)

// Notification statuses.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusResponded = "responded"
)

// Notification is one outbound attempt tied to a source business entity.
// Metadata holds a JSON reference back to that entity, e.g. {"tripId":"t1"}.
type Notification struct {
	ID             string
	Org            string
	Type           NotificationType
	RecipientPhone string
	Message        string
	Status         string
	ErrorMessage   string
	Metadata       string
	ResponseBody   string
	CreatedAt      int64
	SentAt         int64
	RespondedAt    int64
}

// Trip mirrors the dashboard-owned trip record, carrying the
// notified/notified_at idempotency pair the sweep consumes.
type Trip struct {
	ID          string
	Org         string
	DriverName  string
	DriverPhone string
	Origin      string
	Destination string
	ScheduledAt int64
	Status      string
	Notified    bool
	NotifiedAt  int64
}

// Invoice mirrors the dashboard-owned invoice record. MaxReminderDate of
// zero means no hard stop; a non-zero value is the last date (unix ms) a
// reminder may still be sent.
type Invoice struct {
	ID              string
	Org             string
	Number          string
	CustomerName    string
	CustomerPhone   string
	AmountCents     int64
	BalanceCents    int64
	DueDate         int64
	Status          string
	ReminderSent    bool
	ReminderSentAt  int64
	MaxReminderDate int64
}

// Terminal invoice statuses that never receive reminders.
const (
	InvoicePaid      = "paid"
	InvoiceCancelled = "cancelled"
	InvoiceOpen      = "open"
)

// SweepRun is the per-batch audit summary written after every sweep.
type SweepRun struct {
	ID         int64
	Org        string
	Kind       NotificationType
	Processed  int
	Sent       int
	Failed     int
	Errors     string
	StartedAt  int64
	FinishedAt int64
}
