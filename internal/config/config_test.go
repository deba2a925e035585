package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WABRIDGE_API_TOKEN", "0123456789abcdef")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8420" {
		t.Errorf("Addr = %q, want :8420", cfg.Addr)
	}
	if cfg.ReminderCooldownDays != 7 {
		t.Errorf("ReminderCooldownDays = %d, want 7", cfg.ReminderCooldownDays)
	}
	if cfg.SweepBatchSize != 50 {
		t.Errorf("SweepBatchSize = %d, want 50", cfg.SweepBatchSize)
	}
	if got, want := cfg.ReminderCooldown(), 7*24*time.Hour; got != want {
		t.Errorf("ReminderCooldown() = %v, want %v", got, want)
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	cfg := &Config{SweepBatchSize: 50}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject empty API token")
	}
}

func TestValidateRejectsShortToken(t *testing.T) {
	cfg := &Config{APIToken: "short", SweepBatchSize: 50}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject short API token")
	}
}

func TestValidateRejectsZeroBatch(t *testing.T) {
	cfg := &Config{APIToken: "0123456789abcdef", SweepBatchSize: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject zero batch size")
	}
}

func TestTenantsSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.toml")

	in := &Tenants{Organizations: []Tenant{
		{ID: "acme", Name: "Acme Logistics", SummaryRecipients: []string{"5511999990000"}},
		{ID: "norte", Name: "Transportes Norte"},
	}}
	if err := SaveTenants(path, in); err != nil {
		t.Fatalf("SaveTenants() error = %v", err)
	}

	out, err := LoadTenants(path)
	if err != nil {
		t.Fatalf("LoadTenants() error = %v", err)
	}
	if len(out.Organizations) != 2 {
		t.Fatalf("got %d organizations, want 2", len(out.Organizations))
	}
	acme, ok := out.Get("acme")
	if !ok {
		t.Fatal("Get(acme) not found")
	}
	if acme.Name != "Acme Logistics" {
		t.Errorf("Name = %q, want Acme Logistics", acme.Name)
	}
	if len(acme.SummaryRecipients) != 1 || acme.SummaryRecipients[0] != "5511999990000" {
		t.Errorf("SummaryRecipients = %v", acme.SummaryRecipients)
	}
}

func TestLoadTenantsRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.toml")
	raw := "[[organization]]\nid = \"acme\"\n\n[[organization]]\nid = \"acme\"\n"
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTenants(path); err == nil {
		t.Error("LoadTenants() should reject duplicate ids")
	}
}

func TestLoadTenantsMissingFile(t *testing.T) {
	if _, err := LoadTenants("/nonexistent/tenants.toml"); err == nil {
		t.Error("LoadTenants() expected error for missing file")
	}
}

func TestSole(t *testing.T) {
	one := &Tenants{Organizations: []Tenant{{ID: "acme"}}}
	if org, ok := one.Sole(); !ok || org.ID != "acme" {
		t.Errorf("Sole() = %v, %v; want acme, true", org, ok)
	}

	two := &Tenants{Organizations: []Tenant{{ID: "a"}, {ID: "b"}}}
	if _, ok := two.Sole(); ok {
		t.Error("Sole() should be false with two organizations")
	}
}
