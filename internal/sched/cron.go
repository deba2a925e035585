// Package sched drives the periodic notification sweeps. Each tenant
// gets its own set of cron entries so one organization's load never
// delays another's schedule slot.
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/config"
	"github.com/fleetdesk/wabridge/internal/notify"
)

// sweepTimeout bounds one whole batch, not one send; individual sends
// carry their own dispatch timeout.
const sweepTimeout = 5 * time.Minute

// Schedules holds the three cron expressions, standard 5-field format.
type Schedules struct {
	Reminders   string
	Assignments string
	Summaries   string
}

// FromConfig extracts the schedule set from the daemon config.
func FromConfig(cfg *config.Config) Schedules {
	return Schedules{
		Reminders:   cfg.ReminderSchedule,
		Assignments: cfg.AssignmentSchedule,
		Summaries:   cfg.SummarySchedule,
	}
}

// Scheduler owns the cron runner for all tenants.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *notify.Sweeper
	tenants *config.Tenants
	logger  *zap.Logger
}

// New builds a scheduler with entries registered for every tenant. The
// runner is not started yet; call Start.
func New(sweeper *notify.Sweeper, tenants *config.Tenants, schedules Schedules, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		tenants: tenants,
		logger:  logger,
	}
	for _, t := range tenants.Organizations {
		if err := s.register(t, schedules); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) register(t config.Tenant, schedules Schedules) error {
	org := t.ID

	if _, err := s.cron.AddFunc(schedules.Assignments, func() {
		s.run(org, "trip assignments", func(ctx context.Context) error {
			_, err := s.sweeper.SweepTripAssignments(ctx, org)
			return err
		})
	}); err != nil {
		return fmt.Errorf("assignment schedule for %s: %w", org, err)
	}

	if _, err := s.cron.AddFunc(schedules.Reminders, func() {
		s.run(org, "invoice reminders", func(ctx context.Context) error {
			_, err := s.sweeper.SweepInvoiceReminders(ctx, org)
			return err
		})
	}); err != nil {
		return fmt.Errorf("reminder schedule for %s: %w", org, err)
	}

	// Tenants without summary recipients simply skip the daily digest.
	if len(t.SummaryRecipients) > 0 {
		name, recipients := t.Name, t.SummaryRecipients
		if _, err := s.cron.AddFunc(schedules.Summaries, func() {
			s.run(org, "daily summary", func(ctx context.Context) error {
				_, err := s.sweeper.SendDailySummary(ctx, org, name, recipients)
				return err
			})
		}); err != nil {
			return fmt.Errorf("summary schedule for %s: %w", org, err)
		}
	}
	return nil
}

func (s *Scheduler) run(org, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		s.logger.Error("scheduled sweep failed",
			zap.String("org", org),
			zap.String("sweep", what),
			zap.Error(err))
	}
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Int("tenants", len(s.tenants.Organizations)),
		zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
