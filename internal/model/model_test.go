// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

func TestHostString(t *testing.T) {
	h := Host{Username: "deploy", Hostname: "web-01", Port: 22}
	if got := h.String(); got != "deploy@web-01" {
		t.Errorf("unexpected Host.String(): %q", got)
	}

	h.Port = 2222
	if got := h.String(); got != "deploy@web-01:2222" {
		t.Errorf("unexpected Host.String() with port: %q", got)
	}

	h.Label = "prod-web"
	if got := h.String(); got != "prod-web (deploy@web-01:2222)" {
		t.Errorf("unexpected Host.String() with label: %q", got)
	}
}

func TestHostAddr(t *testing.T) {
	h := Host{Hostname: "web-01"}
	if got := h.Addr(); got != "web-01:22" {
		t.Errorf("default port not applied: %q", got)
	}
	h.Port = 2200
	if got := h.Addr(); got != "web-01:2200" {
		t.Errorf("unexpected Addr(): %q", got)
	}

	// IPv6 hostnames must be bracketed to stay dialable.
	h = Host{Hostname: "::1"}
	if got := h.Addr(); got != "[::1]:22" {
		t.Errorf("unexpected IPv6 Addr(): %q", got)
	}
}

func TestCheckResultStatus(t *testing.T) {
	cases := []struct {
		result CheckResult
		want   string
	}{
		{CheckResult{Reachable: true, AuthOK: true}, "ok"},
		{CheckResult{Reachable: true}, "unauthenticated"},
		{CheckResult{}, "unreachable"},
	}
	for _, c := range cases {
		if got := c.result.Status(); got != c.want {
			t.Errorf("Status() = %q, want %q", got, c.want)
		}
	}
}
