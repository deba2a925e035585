package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds daemon runtime settings, loaded from the environment.
type Config struct {
	Addr            string `env:"WABRIDGE_ADDR" envDefault:":8420"`
	DataDir         string `env:"WABRIDGE_DATA_DIR"`
	APIToken        string `env:"WABRIDGE_API_TOKEN"`
	DashboardOrigin string `env:"WABRIDGE_DASHBOARD_ORIGIN" envDefault:"http://localhost:3000"`
	TenantsFile     string `env:"WABRIDGE_TENANTS_FILE"`
	LogLevel        string `env:"WABRIDGE_LOG_LEVEL" envDefault:"info"`

	ReminderCooldownDays int    `env:"WABRIDGE_REMINDER_COOLDOWN_DAYS" envDefault:"7"`
	SweepBatchSize       int    `env:"WABRIDGE_SWEEP_BATCH_SIZE" envDefault:"50"`
	ReminderSchedule     string `env:"WABRIDGE_REMINDER_SCHEDULE" envDefault:"0 9 * * *"`
	AssignmentSchedule   string `env:"WABRIDGE_ASSIGNMENT_SCHEDULE" envDefault:"*/10 * * * *"`
	SummarySchedule      string `env:"WABRIDGE_SUMMARY_SCHEDULE" envDefault:"0 18 * * *"`
	SendTimeoutSeconds   int    `env:"WABRIDGE_SEND_TIMEOUT_SECONDS" envDefault:"30"`
}

// ReminderCooldown returns the minimum interval between two reminders
// for the same invoice.
func (c *Config) ReminderCooldown() time.Duration {
	return time.Duration(c.ReminderCooldownDays) * 24 * time.Hour
}

// SendTimeout returns the per-request timeout applied around dispatch calls.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// Validate checks settings that cannot be expressed as struct tags.
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("WABRIDGE_API_TOKEN must be set; the control API refuses unauthenticated callers")
	}
	if len(c.APIToken) < 16 {
		return fmt.Errorf("WABRIDGE_API_TOKEN must be at least 16 characters (generate with: openssl rand -hex 16)")
	}
	if c.SweepBatchSize < 1 {
		return fmt.Errorf("WABRIDGE_SWEEP_BATCH_SIZE must be positive, got %d", c.SweepBatchSize)
	}
	if c.ReminderCooldownDays < 0 {
		return fmt.Errorf("WABRIDGE_REMINDER_COOLDOWN_DAYS must not be negative, got %d", c.ReminderCooldownDays)
	}
	return nil
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
