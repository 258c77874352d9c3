// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Database.Type != "sqlite" {
		t.Errorf("default database type = %q, want sqlite", c.Database.Type)
	}
	if c.Database.DSN != "./sshforge.db" {
		t.Errorf("default dsn = %q", c.Database.DSN)
	}
	if c.SSH.ConnectTimeout != 10*time.Second {
		t.Errorf("default connect timeout = %v", c.SSH.ConnectTimeout)
	}
	if !c.SSH.KnownHostsFallback {
		t.Error("known_hosts fallback should default to true")
	}
	if c.Monitor.Interval != 5*time.Minute {
		t.Errorf("default monitor interval = %v", c.Monitor.Interval)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := "database:\n  type: postgres\n  dsn: \"host=db user=forge\"\nlanguage: de\nmonitor:\n  interval: 30s\n"
	if err := os.WriteFile(filepath.Join(dir, "sshforge.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Database.Type != "postgres" {
		t.Errorf("database type = %q, want postgres", c.Database.Type)
	}
	if c.Language != "de" {
		t.Errorf("language = %q, want de", c.Language)
	}
	if c.Monitor.Interval != 30*time.Second {
		t.Errorf("monitor interval = %v, want 30s", c.Monitor.Interval)
	}
	// Values not present in the file keep their defaults.
	if c.Monitor.LogDir != "monitoring_logs" {
		t.Errorf("log dir = %q", c.Monitor.LogDir)
	}
}

func TestLoadReportsFileUsed(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	c, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.FileUsed != "" {
		t.Errorf("no config file exists, but FileUsed = %q", c.FileUsed)
	}

	if err := os.WriteFile(filepath.Join(dir, "sshforge.yaml"), []byte("language: de\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = Load(nil, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if filepath.Base(c.FileUsed) != "sshforge.yaml" {
		t.Errorf("FileUsed = %q", c.FileUsed)
	}
}

func TestWriteUserConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	c := Config{
		Database: DatabaseConfig{Type: "sqlite", DSN: "./forge.db"},
		Language: "de",
		SSH:      SSHConfig{ConnectTimeout: 5 * time.Second, KnownHostsFallback: true},
		Monitor:  MonitorConfig{Interval: time.Minute, LogDir: "logs", ReportDir: "reports"},
	}
	path, err := Write(&c, false)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "sshforge.yaml" {
		t.Errorf("written path = %q", path)
	}

	loaded, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load of written config failed: %v", err)
	}
	if loaded.Database.DSN != "./forge.db" || loaded.Language != "de" {
		t.Errorf("round trip lost settings: %+v", loaded)
	}
	if loaded.FileUsed != path {
		t.Errorf("FileUsed = %q, want %q", loaded.FileUsed, path)
	}
}

func TestWriteDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sshforge.yaml")

	written, err := WriteDefaultFile(path)
	if err != nil {
		t.Fatalf("WriteDefaultFile failed: %v", err)
	}
	if written != path {
		t.Errorf("written path = %q", written)
	}

	// Second call must not clobber the existing file.
	written, err = WriteDefaultFile(path)
	if err != nil {
		t.Fatalf("second WriteDefaultFile failed: %v", err)
	}
	if written != "" {
		t.Errorf("expected no write for existing file, got %q", written)
	}
}
