// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures shared between the store,
// the SSH layer and the CLI.
package model // import "github.com/veidt/sshforge/internal/model"

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Host represents a managed account on a remote machine (e.g. deploy@web-01:22).
type Host struct {
	ID       int
	Username string
	Hostname string
	Port     int
	Label    string
	Tags     string
	IsActive bool
}

// Addr returns the host:port dial address. IPv6 hostnames are bracketed.
func (h Host) Addr() string {
	port := h.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(h.Hostname, strconv.Itoa(port))
}

// String returns the user@host[:port] representation, prefixed with the
// label when one is set.
func (h Host) String() string {
	s := fmt.Sprintf("%s@%s", h.Username, h.Hostname)
	if h.Port != 0 && h.Port != 22 {
		s = fmt.Sprintf("%s:%d", s, h.Port)
	}
	if h.Label != "" {
		return fmt.Sprintf("%s (%s)", h.Label, s)
	}
	return s
}

// HostKey is a pinned public key for a hostname, the store-backed
// equivalent of a known_hosts entry.
type HostKey struct {
	ID        int
	Hostname  string
	Algorithm string
	KeyData   string // full authorized_keys-format line, e.g. "ssh-ed25519 AAAA..."
}

// CheckResult records the outcome of a connectivity check against a host.
type CheckResult struct {
	ID        int
	HostID    int
	CheckedAt time.Time
	Reachable bool
	Banner    string
	AuthOK    bool
	LatencyMS int64
	Detail    string
}

// Status returns a one-word summary of the result.
func (r CheckResult) Status() string {
	switch {
	case r.AuthOK:
		return "ok"
	case r.Reachable:
		return "unauthenticated"
	default:
		return "unreachable"
	}
}

// AuditEntry is a single row of the audit log.
type AuditEntry struct {
	ID        int
	Timestamp string
	Action    string
	Details   string
}
