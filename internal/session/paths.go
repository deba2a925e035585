package session

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns ~/.wabridge, the fallback when WABRIDGE_DATA_DIR
// is unset. The directory must live on a mounted volume in container
// deployments: it holds the pairing credentials that have to survive
// restarts and redeploys.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wabridge")
}

// OrgDir returns the per-organization directory.
func OrgDir(dataDir, org string) string {
	return filepath.Join(dataDir, "orgs", org)
}

// CredentialDBPath returns the whatsmeow-owned session.db holding the
// opaque pairing credential blob for an organization.
func CredentialDBPath(dataDir, org string) string {
	return filepath.Join(OrgDir(dataDir, org), "session.db")
}

// LockPath returns the lock file path for an organization's session.
func LockPath(dataDir, org string) string {
	return filepath.Join(OrgDir(dataDir, org), "LOCK")
}

// BridgeDBPath returns the daemon-owned database holding notification
// records, trips and invoices. Shared across organizations.
func BridgeDBPath(dataDir string) string {
	return filepath.Join(dataDir, "bridge.db")
}

// LogDir returns the daemon log directory.
func LogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the daemon log file path.
func LogPath(dataDir string) string {
	return filepath.Join(LogDir(dataDir), "wabridged.log")
}

// TenantsPath returns the default tenants registry path.
func TenantsPath(dataDir string) string {
	return filepath.Join(dataDir, "tenants.toml")
}

// EnsureOrgDir creates an organization's directory with owner-only permissions.
func EnsureOrgDir(dataDir, org string) error {
	return os.MkdirAll(OrgDir(dataDir, org), 0700)
}

// EnsureBaseDirs creates the data and log directories.
func EnsureBaseDirs(dataDir string) error {
	for _, d := range []string{dataDir, LogDir(dataDir)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
