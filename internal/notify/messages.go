package notify

import (
	"fmt"
	"time"

	"github.com/fleetdesk/wabridge/internal/store"
)

func formatCents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}

func invoiceReminderMessage(inv store.Invoice, now time.Time) string {
	daysOverdue := int(now.Sub(time.UnixMilli(inv.DueDate)).Hours() / 24)
	greeting := "Hello"
	if inv.CustomerName != "" {
		greeting = "Hello " + inv.CustomerName
	}
	return fmt.Sprintf(
		"%s, this is a payment reminder for invoice %s. "+
			"The outstanding balance is %s and it has been due for %d day(s). "+
			"Please disregard this message if payment was already made.",
		greeting, inv.Number, formatCents(inv.BalanceCents), daysOverdue)
}

func tripAssignmentMessage(t store.Trip) string {
	when := time.UnixMilli(t.ScheduledAt).Format("02 Jan 2006 15:04")
	greeting := "Hello"
	if t.DriverName != "" {
		greeting = "Hello " + t.DriverName
	}
	return fmt.Sprintf(
		"%s, you have been assigned a trip from %s to %s, scheduled for %s. "+
			"Reply OK to confirm.",
		greeting, t.Origin, t.Destination, when)
}

func dailySummaryMessage(orgName string, day time.Time, tripsToday, overdueCount int, overdueBalance int64) string {
	return fmt.Sprintf(
		"Daily summary for %s (%s): %d trip(s) scheduled today, "+
			"%d overdue invoice(s) totaling %s outstanding.",
		orgName, day.Format("02 Jan 2006"), tripsToday, overdueCount, formatCents(overdueBalance))
}
