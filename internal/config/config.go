// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package config loads and writes the sshforge configuration. Settings are
// resolved in the usual precedence order: defaults, config file, environment
// variables (SSHFORGE_*), then command-line flags.
package config // import "github.com/veidt/sshforge/internal/config"

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the typed view of all sshforge settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Language string         `mapstructure:"language" yaml:"language"`
	SSH      SSHConfig      `mapstructure:"ssh" yaml:"ssh"`
	Monitor  MonitorConfig  `mapstructure:"monitor" yaml:"monitor"`

	// FileUsed is the config file the settings were loaded from, or empty
	// when only defaults, environment and flags applied.
	FileUsed string `mapstructure:"-" yaml:"-"`
}

// DatabaseConfig selects the inventory store backend.
type DatabaseConfig struct {
	// Type is one of "sqlite", "postgres", "mysql".
	Type string `mapstructure:"type" yaml:"type"`
	// DSN is the connection string; for SQLite, the database file path.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// SSHConfig holds client-side connection settings.
type SSHConfig struct {
	// ConnectTimeout bounds every SSH dial.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	// KnownHostsFallback allows falling back to ~/.ssh/known_hosts when a
	// host has no pinned key in the store.
	KnownHostsFallback bool `mapstructure:"known_hosts_fallback" yaml:"known_hosts_fallback"`
}

// MonitorConfig holds settings for the resource monitor.
type MonitorConfig struct {
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	LogDir    string        `mapstructure:"log_dir" yaml:"log_dir"`
	ReportDir string        `mapstructure:"report_dir" yaml:"report_dir"`
}

// Defaults returns the default settings used when neither config file,
// environment nor flags provide a value.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":            "sqlite",
		"database.dsn":             "./sshforge.db",
		"language":                 "en",
		"ssh.connect_timeout":      "10s",
		"ssh.known_hosts_fallback": true,
		"monitor.interval":         "5m",
		"monitor.log_dir":          "monitoring_logs",
		"monitor.report_dir":       "reports",
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "SSHForge")
		default: // Linux, macOS, etc.
			configDir = "/etc/sshforge"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "sshforge")
	}

	return filepath.Join(configDir, "sshforge.yaml"), nil
}

// Load resolves the configuration for a command. When explicitFile is
// non-empty it takes precedence over the standard search locations.
func Load(cmd *cobra.Command, explicitFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("sshforge")
	v.SetConfigType("yaml")
	if explicitFile != "" {
		v.SetConfigFile(explicitFile)
	}

	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("sshforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	c.FileUsed = v.ConfigFileUsed()

	return c, nil
}

// WriteDefaultFile writes a commented default configuration to the given
// path (or the current directory when path is empty) unless one already
// exists. It returns the path written, or "" when nothing was written.
func WriteDefaultFile(path string) (string, error) {
	if path == "" {
		path = "sshforge.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	content := `# SSHForge configuration file.
# This file is automatically generated with default values.

database:
  # The type of inventory store. Supported values: "sqlite", "postgres", "mysql".
  type: sqlite
  # The Data Source Name (DSN). For SQLite, the path to the database file.
  dsn: ./sshforge.db

# CLI language. Supported: "en", "de".
language: en

ssh:
  connect_timeout: 10s
  # Fall back to ~/.ssh/known_hosts for hosts without a pinned key.
  known_hosts_fallback: true

monitor:
  interval: 5m
  log_dir: monitoring_logs
  report_dir: reports
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Write persists the given configuration as YAML, creating parent
// directories as needed, and returns the path written. With system=true
// the system-wide location is used, otherwise the per-user one.
func Write(c *Config, system bool) (string, error) {
	path, err := getConfigPath(system)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("could not marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
