// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"errors"
	"strings"
	"testing"
)

// fakeRunner records executed commands and fails those listed in failing.
type fakeRunner struct {
	commands []string
	failing  map[string]error
	outputs  map[string]string
}

func (f *fakeRunner) Run(cmd string) (string, error) {
	f.commands = append(f.commands, cmd)
	if err, ok := f.failing[cmd]; ok {
		return "", err
	}
	return f.outputs[cmd], nil
}

func (f *fakeRunner) Target() string { return "test" }

func TestInstallServerRunsAllSteps(t *testing.T) {
	r := &fakeRunner{}
	if err := InstallServer(r, InstallSteps()); err != nil {
		t.Fatalf("InstallServer failed: %v", err)
	}
	if len(r.commands) != len(InstallSteps()) {
		t.Fatalf("expected %d commands, got %d", len(InstallSteps()), len(r.commands))
	}
	if !strings.Contains(r.commands[0], "apt-get update") {
		t.Errorf("first command = %q", r.commands[0])
	}
	last := r.commands[len(r.commands)-1]
	if last != "systemctl start ssh" {
		t.Errorf("last command = %q", last)
	}
}

func TestInstallServerNonCriticalFailureContinues(t *testing.T) {
	r := &fakeRunner{failing: map[string]error{
		"apt-get upgrade -y": errors.New("mirror unreachable"),
	}}
	if err := InstallServer(r, InstallSteps()); err != nil {
		t.Fatalf("non-critical failure must not abort: %v", err)
	}
	if len(r.commands) != len(InstallSteps()) {
		t.Fatalf("expected all steps to run, got %d", len(r.commands))
	}
}

func TestInstallServerCriticalFailureAborts(t *testing.T) {
	r := &fakeRunner{failing: map[string]error{
		"apt-get update": errors.New("no network"),
	}}
	err := InstallServer(r, InstallSteps())
	if err == nil {
		t.Fatal("expected error for failed critical step")
	}
	if len(r.commands) != 1 {
		t.Fatalf("sequence should stop at first critical failure, ran %d", len(r.commands))
	}
	if !strings.Contains(err.Error(), "apt-get update") {
		t.Errorf("error should name the step: %v", err)
	}
}

func TestServiceActive(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"systemctl is-active ssh": "active"}}
	state, err := ServiceActive(r)
	if err != nil {
		t.Fatalf("ServiceActive failed: %v", err)
	}
	if state != "active" {
		t.Errorf("state = %q", state)
	}

	r = &fakeRunner{outputs: map[string]string{"systemctl is-active ssh": "inactive"}}
	state, err = ServiceActive(r)
	if err == nil {
		t.Fatal("expected error for inactive service")
	}
	if state != "inactive" {
		t.Errorf("state = %q", state)
	}
}

func TestRestartServer(t *testing.T) {
	r := &fakeRunner{}
	if err := RestartServer(r); err != nil {
		t.Fatalf("RestartServer failed: %v", err)
	}
	if len(r.commands) != 1 || r.commands[0] != "systemctl restart ssh" {
		t.Errorf("commands = %v", r.commands)
	}

	r = &fakeRunner{failing: map[string]error{"systemctl restart ssh": errors.New("unit not found")}}
	if err := RestartServer(r); err == nil {
		t.Fatal("expected error")
	}
}
