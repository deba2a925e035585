package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOrgDir(t *testing.T) {
	got := OrgDir("/data", "acme")
	want := filepath.Join("/data", "orgs", "acme")
	if got != want {
		t.Errorf("OrgDir = %q, want %q", got, want)
	}
}

func TestCredentialDBPath(t *testing.T) {
	got := CredentialDBPath("/data", "acme")
	want := filepath.Join("/data", "orgs", "acme", "session.db")
	if got != want {
		t.Errorf("CredentialDBPath = %q, want %q", got, want)
	}
}

func TestLockPath(t *testing.T) {
	got := LockPath("/data", "acme")
	want := filepath.Join("/data", "orgs", "acme", "LOCK")
	if got != want {
		t.Errorf("LockPath = %q, want %q", got, want)
	}
}

func TestBridgeDBPathSharedAcrossOrgs(t *testing.T) {
	got := BridgeDBPath("/data")
	want := filepath.Join("/data", "bridge.db")
	if got != want {
		t.Errorf("BridgeDBPath = %q, want %q", got, want)
	}
}

func TestEnsureOrgDir(t *testing.T) {
	dataDir := t.TempDir()
	if err := EnsureOrgDir(dataDir, "acme"); err != nil {
		t.Fatalf("EnsureOrgDir() error = %v", err)
	}
	info, err := os.Stat(OrgDir(dataDir, "acme"))
	if err != nil {
		t.Fatalf("org dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("org dir is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("org dir permission = %o, want 0700", perm)
	}
}

func TestEnsureBaseDirs(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "wabridge")
	if err := EnsureBaseDirs(dataDir); err != nil {
		t.Fatalf("EnsureBaseDirs() error = %v", err)
	}
	if _, err := os.Stat(LogDir(dataDir)); err != nil {
		t.Errorf("log dir not created: %v", err)
	}
}
