package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetdesk/wabridge/internal/config"
)

func defaultSchedules() Schedules {
	return Schedules{
		Reminders:   "0 9 * * *",
		Assignments: "*/10 * * * *",
		Summaries:   "0 18 * * *",
	}
}

func TestNewRegistersEntriesPerTenant(t *testing.T) {
	tenants := &config.Tenants{Organizations: []config.Tenant{
		{ID: "acme", Name: "Acme", SummaryRecipients: []string{"5511999990000"}},
		{ID: "globex", Name: "Globex"},
	}}

	s, err := New(nil, tenants, defaultSchedules(), zap.NewNop())
	require.NoError(t, err)

	// acme gets all three sweeps; globex has no summary recipients and
	// only gets the two flag-driven ones.
	require.Len(t, s.cron.Entries(), 5)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	tenants := &config.Tenants{Organizations: []config.Tenant{{ID: "acme"}}}

	bad := defaultSchedules()
	bad.Assignments = "not a cron spec"
	_, err := New(nil, tenants, bad, zap.NewNop())
	require.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		ReminderSchedule:   "0 8 * * *",
		AssignmentSchedule: "*/5 * * * *",
		SummarySchedule:    "30 17 * * *",
	}
	s := FromConfig(cfg)
	require.Equal(t, "0 8 * * *", s.Reminders)
	require.Equal(t, "*/5 * * * *", s.Assignments)
	require.Equal(t, "30 17 * * *", s.Summaries)
}
