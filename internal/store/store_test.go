package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "bridge.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)
	result, err := db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if result.Changed {
		t.Error("second Migrate() reported changes")
	}
	if result.Dirty {
		t.Error("migration left database dirty")
	}
}

func TestNotificationLifecycle(t *testing.T) {
	db := testDB(t)

	n := &Notification{
		ID:             uuid.NewString(),
		Org:            "acme",
		Type:           TypeInvoiceReminder,
		RecipientPhone: "5511999990000",
		Message:        "your invoice is overdue",
		Status:         StatusSent,
		Metadata:       `{"invoiceId":"inv-1"}`,
		SentAt:         time.Now().UnixMilli(),
	}
	if err := db.InsertNotification(n); err != nil {
		t.Fatalf("InsertNotification() error = %v", err)
	}

	open, err := db.LatestOpenNotification("acme", "5511999990000")
	if err != nil {
		t.Fatal(err)
	}
	if open == nil || open.ID != n.ID {
		t.Fatalf("LatestOpenNotification() = %+v, want id %s", open, n.ID)
	}

	if err := db.MarkNotificationResponded(n.ID, "ok, confirmed"); err != nil {
		t.Fatal(err)
	}

	// A responded notification is no longer open.
	open, err = db.LatestOpenNotification("acme", "5511999990000")
	if err != nil {
		t.Fatal(err)
	}
	if open != nil {
		t.Errorf("LatestOpenNotification() after respond = %+v, want nil", open)
	}

	list, err := db.ListNotifications("acme", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Status != StatusResponded {
		t.Errorf("ListNotifications() = %+v, want one responded record", list)
	}
	if list[0].ResponseBody != "ok, confirmed" {
		t.Errorf("ResponseBody = %q", list[0].ResponseBody)
	}
}

func TestLatestOpenNotificationPicksNewest(t *testing.T) {
	db := testDB(t)

	old := &Notification{
		ID: "old", Org: "acme", Type: TypeTripAssignment,
		RecipientPhone: "5511999990000", Message: "trip 1",
		Status: StatusSent, CreatedAt: 1000,
	}
	newer := &Notification{
		ID: "new", Org: "acme", Type: TypeTripAssignment,
		RecipientPhone: "5511999990000", Message: "trip 2",
		Status: StatusSent, CreatedAt: 2000,
	}
	if err := db.InsertNotification(old); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertNotification(newer); err != nil {
		t.Fatal(err)
	}

	got, err := db.LatestOpenNotification("acme", "5511999990000")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "new" {
		t.Errorf("LatestOpenNotification() = %+v, want the newest record", got)
	}
}

func TestNotificationCounts(t *testing.T) {
	db := testDB(t)

	records := []Notification{
		{ID: "a", Status: StatusSent},
		{ID: "b", Status: StatusResponded},
		{ID: "c", Status: StatusPending},
		{ID: "d", Status: StatusFailed},
	}
	for i := range records {
		records[i].Org = "acme"
		records[i].Type = TypeManual
		records[i].RecipientPhone = "5511999990000"
		records[i].Message = "m"
		if err := db.InsertNotification(&records[i]); err != nil {
			t.Fatal(err)
		}
	}

	sent, pending, err := db.NotificationCounts("acme")
	if err != nil {
		t.Fatal(err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2 (sent + responded)", sent)
	}
	if pending != 1 {
		t.Errorf("pending = %d, want 1", pending)
	}
}

func TestUnnotifiedTrips(t *testing.T) {
	db := testDB(t)

	trips := []Trip{
		{ID: "t1", Org: "acme", DriverPhone: "5511988880000", Status: "scheduled", ScheduledAt: 100},
		{ID: "t2", Org: "acme", DriverPhone: "", Status: "scheduled", ScheduledAt: 200},       // no phone
		{ID: "t3", Org: "acme", DriverPhone: "5511977770000", Status: "completed"},            // terminal
		{ID: "t4", Org: "acme", DriverPhone: "5511966660000", Status: "scheduled", Notified: true},
		{ID: "t5", Org: "other", DriverPhone: "5511955550000", Status: "scheduled"},           // other org
	}
	for i := range trips {
		if err := db.UpsertTrip(&trips[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.UnnotifiedTrips("acme", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("UnnotifiedTrips() = %+v, want only t1", got)
	}

	if err := db.MarkTripNotified("t1", time.Now().UnixMilli()); err != nil {
		t.Fatal(err)
	}
	got, err = db.UnnotifiedTrips("acme", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("UnnotifiedTrips() after mark = %+v, want none", got)
	}
}

func TestDueInvoiceReminders(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()
	day := int64(24 * time.Hour / time.Millisecond)
	cooldown := 7 * day

	invoices := []Invoice{
		// Eligible: overdue, unpaid, never reminded.
		{ID: "i1", Number: "INV-100", CustomerPhone: "551199999", BalanceCents: 15000, DueDate: now - 3*day, Status: InvoiceOpen},
		// Not yet due.
		{ID: "i2", Number: "INV-101", CustomerPhone: "551199999", BalanceCents: 5000, DueDate: now + day, Status: InvoiceOpen},
		// Paid.
		{ID: "i3", Number: "INV-102", CustomerPhone: "551199999", BalanceCents: 5000, DueDate: now - day, Status: InvoicePaid},
		// Zero balance.
		{ID: "i4", Number: "INV-103", CustomerPhone: "551199999", BalanceCents: 0, DueDate: now - day, Status: InvoiceOpen},
		// Reminded recently: inside cooldown.
		{ID: "i5", Number: "INV-104", CustomerPhone: "551199999", BalanceCents: 5000, DueDate: now - day, Status: InvoiceOpen, ReminderSent: true, ReminderSentAt: now - day},
		// Reminded long ago: cooldown elapsed, eligible again.
		{ID: "i6", Number: "INV-105", CustomerPhone: "551199999", BalanceCents: 5000, DueDate: now - 30*day, Status: InvoiceOpen, ReminderSent: true, ReminderSentAt: now - 10*day},
		// Max reminder date in the past: never selected.
		{ID: "i7", Number: "INV-106", CustomerPhone: "551199999", BalanceCents: 5000, DueDate: now - 30*day, Status: InvoiceOpen, MaxReminderDate: now - day},
		// No phone.
		{ID: "i8", Number: "INV-107", CustomerPhone: "", BalanceCents: 5000, DueDate: now - day, Status: InvoiceOpen},
	}
	for i := range invoices {
		invoices[i].Org = "acme"
		if err := db.UpsertInvoice(&invoices[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.DueInvoiceReminders("acme", now, cooldown, 50)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[string]bool{}
	for _, i := range got {
		ids[i.ID] = true
	}
	if len(got) != 2 || !ids["i1"] || !ids["i6"] {
		t.Errorf("DueInvoiceReminders() = %v, want [i1 i6]", ids)
	}
}

func TestDueInvoiceRemindersBatchCap(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	for i := 0; i < 10; i++ {
		inv := Invoice{
			ID: uuid.NewString(), Org: "acme", Number: "INV",
			CustomerPhone: "551199999", BalanceCents: 100,
			DueDate: now - 1000, Status: InvoiceOpen,
		}
		if err := db.UpsertInvoice(&inv); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.DueInvoiceReminders("acme", now, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d invoices, want batch cap of 3", len(got))
	}
}

func TestMarkInvoiceRemindedExcludesFromReselection(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	inv := Invoice{
		ID: "inv-100", Org: "acme", Number: "INV-100",
		CustomerPhone: "551199999", BalanceCents: 15000,
		DueDate: now - 1000, Status: InvoiceOpen,
	}
	if err := db.UpsertInvoice(&inv); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkInvoiceReminded("inv-100", now); err != nil {
		t.Fatal(err)
	}

	got, err := db.DueInvoiceReminders("acme", now, int64(7*24*time.Hour/time.Millisecond), 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("invoice reselected inside cooldown: %+v", got)
	}
}

func TestUpsertInvoicePreservesReminderFlags(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	inv := Invoice{ID: "i1", Org: "acme", Number: "INV-1", CustomerPhone: "55119", BalanceCents: 100, DueDate: now - 1000, Status: InvoiceOpen}
	if err := db.UpsertInvoice(&inv); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkInvoiceReminded("i1", now); err != nil {
		t.Fatal(err)
	}

	// A dashboard sync updates the balance; the reminder flags must survive.
	inv.BalanceCents = 50
	if err := db.UpsertInvoice(&inv); err != nil {
		t.Fatal(err)
	}

	got, err := db.DueInvoiceReminders("acme", now, int64(7*24*time.Hour/time.Millisecond), 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("reminder flag lost on upsert: %+v", got)
	}
}

func TestSweepRuns(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	run := &SweepRun{
		Org: "acme", Kind: TypeInvoiceReminder,
		Processed: 5, Sent: 4, Failed: 1,
		Errors: "i3: transport error", StartedAt: now, FinishedAt: now + 100,
	}
	if err := db.InsertSweepRun(run); err != nil {
		t.Fatal(err)
	}
	if run.ID == 0 {
		t.Error("InsertSweepRun() did not backfill ID")
	}

	got, err := db.ListSweepRuns("acme", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Sent != 4 || got[0].Failed != 1 {
		t.Errorf("ListSweepRuns() = %+v", got)
	}
}

func TestOverdueInvoiceTotals(t *testing.T) {
	db := testDB(t)
	now := time.Now().UnixMilli()

	invoices := []Invoice{
		{ID: "a", Org: "acme", Number: "1", BalanceCents: 100, DueDate: now - 1000, Status: InvoiceOpen},
		{ID: "b", Org: "acme", Number: "2", BalanceCents: 250, DueDate: now - 1000, Status: InvoiceOpen},
		{ID: "c", Org: "acme", Number: "3", BalanceCents: 999, DueDate: now + 1000, Status: InvoiceOpen},
	}
	for i := range invoices {
		if err := db.UpsertInvoice(&invoices[i]); err != nil {
			t.Fatal(err)
		}
	}

	count, balance, err := db.OverdueInvoiceTotals("acme", now)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || balance != 350 {
		t.Errorf("OverdueInvoiceTotals() = %d, %d; want 2, 350", count, balance)
	}
}
