// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"testing"
	"time"

	"github.com/veidt/sshforge/internal/model"
)

// newTestStore returns a fresh in-memory SQLite store.
func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStoreFromDSN("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewStoreFromDSN failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUnsupportedDBType(t *testing.T) {
	if _, err := NewStoreFromDSN("oracle", "whatever"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}

func TestHostCRUD(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddHost("deploy", "web-01", 22, "prod", "web,frontend")
	if err != nil {
		t.Fatalf("AddHost failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero host ID")
	}

	// Duplicates are rejected.
	if _, err := s.AddHost("deploy", "web-01", 22, "", ""); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same host, different port is a distinct entry.
	if _, err := s.AddHost("deploy", "web-01", 2222, "", ""); err != nil {
		t.Fatalf("AddHost with different port failed: %v", err)
	}

	hosts, err := s.GetAllHosts()
	if err != nil {
		t.Fatalf("GetAllHosts failed: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(hosts))
	}
	if hosts[0].Label != "prod" && hosts[1].Label != "prod" {
		t.Error("label was not persisted")
	}

	found, err := s.FindHost("deploy", "web-01", 22)
	if err != nil {
		t.Fatalf("FindHost failed: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("FindHost returned %+v", found)
	}

	missing, err := s.FindHost("nobody", "web-01", 22)
	if err != nil {
		t.Fatalf("FindHost for missing host failed: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing host")
	}

	if err := s.SetHostActive(id, false); err != nil {
		t.Fatalf("SetHostActive failed: %v", err)
	}
	active, err := s.GetAllActiveHosts()
	if err != nil {
		t.Fatalf("GetAllActiveHosts failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active host, got %d", len(active))
	}

	if err := s.DeleteHost(id); err != nil {
		t.Fatalf("DeleteHost failed: %v", err)
	}
	hosts, _ = s.GetAllHosts()
	if len(hosts) != 1 {
		t.Fatalf("expected 1 host after delete, got %d", len(hosts))
	}
}

func TestHostKeyPinning(t *testing.T) {
	s := newTestStore(t)

	key, err := s.GetHostKey("web-01")
	if err != nil {
		t.Fatalf("GetHostKey failed: %v", err)
	}
	if key != nil {
		t.Fatalf("expected nil key for unknown host, got %+v", key)
	}

	line := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIDummy"
	if err := s.PinHostKey("web-01", line); err != nil {
		t.Fatalf("PinHostKey failed: %v", err)
	}
	key, err = s.GetHostKey("web-01")
	if err != nil {
		t.Fatalf("GetHostKey after pin failed: %v", err)
	}
	if key == nil || key.KeyData != line {
		t.Fatalf("pinned key = %+v, want key data %q", key, line)
	}
	if key.Hostname != "web-01" {
		t.Errorf("pinned hostname = %q, want %q", key.Hostname, "web-01")
	}
	if key.Algorithm != "ssh-ed25519" {
		t.Errorf("pinned algorithm = %q, want %q", key.Algorithm, "ssh-ed25519")
	}

	// Re-pinning replaces the previous key.
	replacement := "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOther"
	if err := s.PinHostKey("web-01", replacement); err != nil {
		t.Fatalf("re-pin failed: %v", err)
	}
	key, _ = s.GetHostKey("web-01")
	if key == nil || key.KeyData != replacement {
		t.Errorf("re-pinned key = %+v, want key data %q", key, replacement)
	}
}

func TestCheckResultHistory(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddHost("deploy", "web-01", 22, "", "")
	if err != nil {
		t.Fatalf("AddHost failed: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.AddCheckResult(model.CheckResult{
			HostID:    id,
			CheckedAt: base.Add(time.Duration(i) * time.Minute),
			Reachable: true,
			AuthOK:    i == 2,
			Banner:    "SSH-2.0-OpenSSH_9.6",
			LatencyMS: int64(10 + i),
		})
		if err != nil {
			t.Fatalf("AddCheckResult failed: %v", err)
		}
	}

	results, err := s.RecentCheckResults(id, 2)
	if err != nil {
		t.Fatalf("RecentCheckResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Newest first.
	if !results[0].AuthOK {
		t.Error("expected newest result first")
	}
	if results[0].Banner != "SSH-2.0-OpenSSH_9.6" {
		t.Errorf("banner = %q", results[0].Banner)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)

	if err := s.LogAction("TEST_ACTION", "details here"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	if err := s.LogAction("SECOND_ACTION", ""); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}

	entries, err := s.AuditLog(10)
	if err != nil {
		t.Fatalf("AuditLog failed: %v", err)
	}
	// AddHost-free store: only our two entries.
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "SECOND_ACTION" {
		t.Errorf("expected newest entry first, got %q", entries[0].Action)
	}
	if _, err := time.Parse(time.RFC3339, entries[0].Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %q", entries[0].Timestamp)
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	if err := InitDB("sqlite", ":memory:"); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { SetStore(nil) })

	if !IsInitialized() {
		t.Fatal("IsInitialized should be true after InitDB")
	}
	if _, err := AddHost("root", "db-01", 22, "", ""); err != nil {
		t.Fatalf("package-level AddHost failed: %v", err)
	}
	hosts, err := GetAllActiveHosts()
	if err != nil {
		t.Fatalf("package-level GetAllActiveHosts failed: %v", err)
	}
	if len(hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(hosts))
	}
}
