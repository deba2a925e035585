package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/bus"
	"github.com/fleetdesk/wabridge/internal/dispatch"
	"github.com/fleetdesk/wabridge/internal/store"
)

// Sender is the dispatch primitive the sweeper drives. *dispatch.Dispatcher
// implements it.
type Sender interface {
	Send(ctx context.Context, org, phone, message string) (dispatch.Receipt, error)
}

// Options tunes a Sweeper.
type Options struct {
	// Cooldown is the minimum interval between reminders for the same
	// invoice, measured against reminder_sent_at.
	Cooldown time.Duration
	// BatchSize caps how many entities one sweep invocation processes.
	BatchSize int
}

// Summary reports one batch sweep for auditing.
type Summary struct {
	Kind      store.NotificationType
	Processed int
	Sent      int
	Failed    int
	Errors    []string
}

// Sweeper turns pending business events into dispatch calls, exactly
// once per event under normal conditions. Idempotency rides on the
// notified/reminder_sent flag pairs of the source records: the flag is
// set only after a successful dispatch, so failures are naturally
// retried on the next scheduled run. Two concurrent sweeps may race on
// the same unflagged entity; the window is small and a duplicate
// message is the worst outcome, which is accepted rather than paying
// for distributed locking.
type Sweeper struct {
	db     *store.DB
	sender Sender
	bus    *bus.Bus
	logger *zap.Logger
	opts   Options
	now    func() time.Time
}

// NewSweeper creates a sweeper. Zero options get production defaults
// (7 day cooldown, batches of 50).
func NewSweeper(db *store.DB, sender Sender, b *bus.Bus, logger *zap.Logger, opts Options) *Sweeper {
	if opts.Cooldown == 0 {
		opts.Cooldown = 7 * 24 * time.Hour
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 50
	}
	return &Sweeper{
		db:     db,
		sender: sender,
		bus:    b,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// SweepInvoiceReminders selects overdue invoices outside their cooldown
// window and dispatches one reminder each. Per-invoice failures are
// collected and the batch continues; only a failing selection query
// aborts the sweep.
func (s *Sweeper) SweepInvoiceReminders(ctx context.Context, org string) (Summary, error) {
	now := s.now()
	invoices, err := s.db.DueInvoiceReminders(org, now.UnixMilli(), s.opts.Cooldown.Milliseconds(), s.opts.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("select due invoices: %w", err)
	}

	sum := Summary{Kind: store.TypeInvoiceReminder, Processed: len(invoices)}
	for _, inv := range invoices {
		msg := invoiceReminderMessage(inv, now)
		meta := mustMeta(map[string]string{"invoiceId": inv.ID, "invoiceNumber": inv.Number})

		receipt, err := s.sender.Send(ctx, org, inv.CustomerPhone, msg)
		sentAt := s.now().UnixMilli()
		if err != nil {
			// Flag stays false so the next run retries.
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", inv.Number, err))
			s.recordFailure(org, store.TypeInvoiceReminder, inv.CustomerPhone, msg, meta, err)
			continue
		}

		sum.Sent++
		if err := s.db.MarkInvoiceReminded(inv.ID, sentAt); err != nil {
			s.logger.Error("failed to mark invoice reminded",
				zap.String("org", org), zap.String("invoice", inv.ID), zap.Error(err))
		}
		s.recordSent(org, store.TypeInvoiceReminder, receipt.Phone, msg, meta, sentAt)
	}

	s.finish(org, now, &sum)
	return sum, nil
}

// RemindInvoice sends one reminder for a specific invoice on operator
// request. The cooldown is bypassed; the operator asked explicitly. The
// flag pair is still updated so the scheduled sweep does not follow up
// right away.
func (s *Sweeper) RemindInvoice(ctx context.Context, org, invoiceID string) (dispatch.Receipt, error) {
	inv, err := s.db.GetInvoice(org, invoiceID)
	if err != nil {
		return dispatch.Receipt{}, fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil {
		return dispatch.Receipt{}, fmt.Errorf("%w: unknown invoice %q", dispatch.ErrValidation, invoiceID)
	}
	if inv.Status == store.InvoicePaid || inv.Status == store.InvoiceCancelled || inv.BalanceCents <= 0 {
		return dispatch.Receipt{}, fmt.Errorf("%w: invoice %s has nothing outstanding", dispatch.ErrValidation, inv.Number)
	}

	now := s.now()
	msg := invoiceReminderMessage(*inv, now)
	meta := mustMeta(map[string]string{"invoiceId": inv.ID, "invoiceNumber": inv.Number})

	receipt, err := s.sender.Send(ctx, org, inv.CustomerPhone, msg)
	if err != nil {
		s.recordFailure(org, store.TypeInvoiceReminder, inv.CustomerPhone, msg, meta, err)
		return dispatch.Receipt{}, err
	}

	sentAt := s.now().UnixMilli()
	if err := s.db.MarkInvoiceReminded(inv.ID, sentAt); err != nil {
		s.logger.Error("failed to mark invoice reminded",
			zap.String("org", org), zap.String("invoice", inv.ID), zap.Error(err))
	}
	s.recordSent(org, store.TypeInvoiceReminder, receipt.Phone, msg, meta, sentAt)
	return receipt, nil
}

// SweepTripAssignments notifies drivers of scheduled trips they have not
// been told about yet.
func (s *Sweeper) SweepTripAssignments(ctx context.Context, org string) (Summary, error) {
	now := s.now()
	trips, err := s.db.UnnotifiedTrips(org, s.opts.BatchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("select unnotified trips: %w", err)
	}

	sum := Summary{Kind: store.TypeTripAssignment, Processed: len(trips)}
	for _, trip := range trips {
		msg := tripAssignmentMessage(trip)
		meta := mustMeta(map[string]string{"tripId": trip.ID})

		receipt, err := s.sender.Send(ctx, org, trip.DriverPhone, msg)
		sentAt := s.now().UnixMilli()
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", trip.ID, err))
			s.recordFailure(org, store.TypeTripAssignment, trip.DriverPhone, msg, meta, err)
			continue
		}

		sum.Sent++
		if err := s.db.MarkTripNotified(trip.ID, sentAt); err != nil {
			s.logger.Error("failed to mark trip notified",
				zap.String("org", org), zap.String("trip", trip.ID), zap.Error(err))
		}
		s.recordSent(org, store.TypeTripAssignment, receipt.Phone, msg, meta, sentAt)
	}

	s.finish(org, now, &sum)
	return sum, nil
}

// SendDailySummary sends the day's headline numbers to each configured
// recipient. Summaries are explicitly repeatable, so no flag guards them;
// the scheduler fires this once per day.
func (s *Sweeper) SendDailySummary(ctx context.Context, org, orgName string, recipients []string) (Summary, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	tripsToday, err := s.db.CountTripsScheduledBetween(org, dayStart.UnixMilli(), dayEnd.UnixMilli())
	if err != nil {
		return Summary{}, fmt.Errorf("count trips: %w", err)
	}
	overdueCount, overdueBalance, err := s.db.OverdueInvoiceTotals(org, now.UnixMilli())
	if err != nil {
		return Summary{}, fmt.Errorf("overdue totals: %w", err)
	}

	msg := dailySummaryMessage(orgName, now, tripsToday, overdueCount, overdueBalance)
	meta := mustMeta(map[string]string{"date": dayStart.Format("2006-01-02")})

	sum := Summary{Kind: store.TypeDailySummary, Processed: len(recipients)}
	for _, phone := range recipients {
		receipt, err := s.sender.Send(ctx, org, phone, msg)
		sentAt := s.now().UnixMilli()
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", phone, err))
			s.recordFailure(org, store.TypeDailySummary, phone, msg, meta, err)
			continue
		}
		sum.Sent++
		s.recordSent(org, store.TypeDailySummary, receipt.Phone, msg, meta, sentAt)
	}

	s.finish(org, now, &sum)
	return sum, nil
}

func (s *Sweeper) recordSent(org string, kind store.NotificationType, phone, msg, meta string, sentAt int64) {
	err := s.db.InsertNotification(&store.Notification{
		ID:             uuid.NewString(),
		Org:            org,
		Type:           kind,
		RecipientPhone: phone,
		Message:        msg,
		Status:         store.StatusSent,
		Metadata:       meta,
		SentAt:         sentAt,
	})
	if err != nil {
		s.logger.Error("failed to record sent notification",
			zap.String("org", org), zap.Error(err))
	}
}

func (s *Sweeper) recordFailure(org string, kind store.NotificationType, phone, msg, meta string, cause error) {
	err := s.db.InsertNotification(&store.Notification{
		ID:             uuid.NewString(),
		Org:            org,
		Type:           kind,
		RecipientPhone: phone,
		Message:        msg,
		Status:         store.StatusFailed,
		ErrorMessage:   cause.Error(),
		Metadata:       meta,
	})
	if err != nil {
		s.logger.Error("failed to record failed notification",
			zap.String("org", org), zap.Error(err))
	}
}

// finish writes the audit row and publishes the sweep result.
func (s *Sweeper) finish(org string, started time.Time, sum *Summary) {
	run := &store.SweepRun{
		Org:        org,
		Kind:       sum.Kind,
		Processed:  sum.Processed,
		Sent:       sum.Sent,
		Failed:     sum.Failed,
		Errors:     strings.Join(sum.Errors, "; "),
		StartedAt:  started.UnixMilli(),
		FinishedAt: s.now().UnixMilli(),
	}
	if err := s.db.InsertSweepRun(run); err != nil {
		s.logger.Error("failed to record sweep run",
			zap.String("org", org), zap.Error(err))
	}
	s.logger.Info("sweep finished",
		zap.String("org", org),
		zap.String("kind", string(sum.Kind)),
		zap.Int("processed", sum.Processed),
		zap.Int("sent", sum.Sent),
		zap.Int("failed", sum.Failed))
	s.bus.Emit(bus.KindSweepDone, org, *sum)
}

func mustMeta(m map[string]string) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
