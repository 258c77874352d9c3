//go:build windows
// +build windows

// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// Windows-specific lookup of a running SSH agent.
package deploy // import "github.com/veidt/sshforge/internal/deploy"

import (
	"net"
	"os"

	"github.com/Microsoft/go-winio"
	"github.com/davidmz/go-pageant"
	"golang.org/x/crypto/ssh/agent"
)

// getSSHAgent locates an SSH agent on Windows. Pageant-compatible agents
// (PuTTY, gpg-agent) are preferred; otherwise the OpenSSH agent is reached
// through its named pipe, honoring SSH_AUTH_SOCK when set.
func getSSHAgent() agent.Agent {
	if pageant.Available() {
		return pageant.New()
	}

	var conn net.Conn
	var err error
	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		conn, err = winio.DialPipe(socket, nil)
	} else {
		conn, err = winio.DialPipe(`\\.\pipe\openssh-ssh-agent`, nil)
	}
	if err != nil || conn == nil {
		return nil
	}
	return agent.NewClient(conn)
}
