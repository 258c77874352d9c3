// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package provision installs and enables the OpenSSH server by driving the
// system package and service managers. The same step sequence runs either
// on the local machine or on a remote host over an established SSH
// connection, selected by the Runner implementation.
package provision // import "github.com/veidt/sshforge/internal/provision"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/veidt/sshforge/internal/logging"
)

// Runner executes a shell command somewhere and returns its output.
type Runner interface {
	Run(cmd string) (string, error)
	// Target names where commands run, for messages ("local" or user@host).
	Target() string
}

// ErrNotRoot is returned when local provisioning is attempted without
// root privileges.
var ErrNotRoot = errors.New("root privileges required")

// Step is one command of the provisioning sequence. Non-critical steps
// log a warning on failure and the sequence continues; critical steps
// abort it.
type Step struct {
	Cmd      string
	Critical bool
}

// InstallSteps is the OpenSSH server installation sequence for
// Debian-family systems.
func InstallSteps() []Step {
	return []Step{
		{Cmd: "apt-get update", Critical: true},
		{Cmd: "apt-get upgrade -y", Critical: false},
		{Cmd: "DEBIAN_FRONTEND=noninteractive apt-get install -y openssh-server", Critical: true},
		{Cmd: "systemctl enable ssh", Critical: true},
		{Cmd: "systemctl start ssh", Critical: true},
	}
}

// LocalRunner executes commands on the local machine through the shell.
type LocalRunner struct {
	// Ctx bounds every command when set.
	Ctx context.Context
}

// Run executes the command via `sh -c` and returns its combined output.
func (l LocalRunner) Run(cmd string) (string, error) {
	ctx := l.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).CombinedOutput()
	output := strings.TrimRight(string(out), "\n")
	if err != nil {
		if output != "" {
			return output, fmt.Errorf("command %q failed: %w: %s", cmd, err, output)
		}
		return output, fmt.Errorf("command %q failed: %w", cmd, err)
	}
	return output, nil
}

// Target identifies the local machine.
func (l LocalRunner) Target() string { return "local" }

// RequireRoot verifies the current process runs with EUID 0. Local
// package and service management cannot work without it.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}

// InstallServer runs the installation sequence on the given runner.
// Non-critical failures are logged and skipped; a critical failure aborts
// with an error naming the step.
func InstallServer(r Runner, steps []Step) error {
	for _, step := range steps {
		logging.Infof("[%s] running: %s", r.Target(), step.Cmd)
		if _, err := r.Run(step.Cmd); err != nil {
			if !step.Critical {
				logging.Warnf("[%s] step failed (continuing): %s: %v", r.Target(), step.Cmd, err)
				continue
			}
			return fmt.Errorf("critical step %q failed: %w", step.Cmd, err)
		}
	}
	return nil
}

// ServiceActive checks whether the OpenSSH service is active. The
// returned state is systemctl's answer ("active", "inactive", ...).
func ServiceActive(r Runner) (string, error) {
	out, err := r.Run("systemctl is-active ssh")
	state := strings.TrimSpace(out)
	if err != nil {
		if state == "" {
			state = "unknown"
		}
		return state, fmt.Errorf("ssh service is not active: %w", err)
	}
	if state != "active" {
		return state, fmt.Errorf("ssh service state is %q", state)
	}
	return state, nil
}

// RestartServer restarts the OpenSSH service, e.g. after editing
// sshd_config.
func RestartServer(r Runner) error {
	if _, err := r.Run("systemctl restart ssh"); err != nil {
		return fmt.Errorf("failed to restart ssh service: %w", err)
	}
	return nil
}
