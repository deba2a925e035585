package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Tenant describes one organization whose WhatsApp session this daemon owns.
type Tenant struct {
	ID                string   `toml:"id"`
	Name              string   `toml:"name"`
	SummaryRecipients []string `toml:"summary_recipients"`
}

// Tenants is the registry loaded from tenants.toml:
//
//	[[organization]]
//	id = "acme"
//	name = "Acme Logistics"
//	summary_recipients = ["5511999990000"]
type Tenants struct {
	Organizations []Tenant `toml:"organization"`
}

// LoadTenants reads and validates the tenant registry.
func LoadTenants(path string) (*Tenants, error) {
	var t Tenants
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("load tenants file: %w", err)
	}
	seen := make(map[string]bool, len(t.Organizations))
	for _, org := range t.Organizations {
		if org.ID == "" {
			return nil, fmt.Errorf("tenants file %s: organization with empty id", path)
		}
		if seen[org.ID] {
			return nil, fmt.Errorf("tenants file %s: duplicate organization id %q", path, org.ID)
		}
		seen[org.ID] = true
	}
	return &t, nil
}

// SaveTenants writes the registry, creating parent dirs as needed.
func SaveTenants(path string, t *Tenants) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(t)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Get returns the tenant with the given id.
func (t *Tenants) Get(id string) (Tenant, bool) {
	for _, org := range t.Organizations {
		if org.ID == id {
			return org, true
		}
	}
	return Tenant{}, false
}

// Sole returns the only configured tenant, if exactly one exists. Callers
// use it to default the organization on single-tenant deployments.
func (t *Tenants) Sole() (Tenant, bool) {
	if len(t.Organizations) == 1 {
		return t.Organizations[0], true
	}
	return Tenant{}, false
}
