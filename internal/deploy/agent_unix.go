//go:build !windows
// +build !windows

// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// Unix-specific lookup of a running SSH agent.
package deploy // import "github.com/veidt/sshforge/internal/deploy"

import (
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
)

// getSSHAgent connects to the SSH agent advertised via SSH_AUTH_SOCK.
// It returns nil when no agent is reachable.
func getSSHAgent() agent.Agent {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}
	return agent.NewClient(conn)
}
