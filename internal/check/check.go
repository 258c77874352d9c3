// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package check implements the connectivity test: TCP reachability, SSH
// banner identification and an authenticated handshake probe. Each step is
// independent so a failure pinpoints the broken layer.
package check // import "github.com/veidt/sshforge/internal/check"

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/model"
)

// Result collects the outcome of all probe steps against one target.
type Result struct {
	Addr string

	Reachable  bool
	TCPLatency time.Duration
	TCPErr     error

	Banner    string
	BannerErr error

	AuthOK      bool
	AuthLatency time.Duration
	AuthErr     error
}

// Err returns the first failing step's error, or nil when the target
// passed the full check.
func (r Result) Err() error {
	switch {
	case r.TCPErr != nil:
		return r.TCPErr
	case r.AuthErr != nil:
		return r.AuthErr
	}
	return nil
}

// ToCheckResult converts the probe outcome into a storable history row.
func (r Result) ToCheckResult(hostID int) model.CheckResult {
	detail := ""
	if err := r.Err(); err != nil {
		detail = err.Error()
	}
	latency := r.AuthLatency
	if latency == 0 {
		latency = r.TCPLatency
	}
	return model.CheckResult{
		HostID:    hostID,
		CheckedAt: time.Now().UTC(),
		Reachable: r.Reachable,
		Banner:    r.Banner,
		AuthOK:    r.AuthOK,
		LatencyMS: latency.Milliseconds(),
		Detail:    detail,
	}
}

// ProbeTCP measures whether a TCP connection to addr can be established
// within the timeout, the equivalent of the port probe in a shell's
// /dev/tcp redirection.
func ProbeTCP(addr string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return 0, fmt.Errorf("tcp connect to %s failed: %w", addr, err)
	}
	_ = conn.Close()
	return time.Since(start), nil
}

// ProbeBanner connects to addr and reads the SSH protocol identification
// line the server sends first (e.g. "SSH-2.0-OpenSSH_9.6").
func ProbeBanner(addr string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", fmt.Errorf("tcp connect to %s failed: %w", addr, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read banner from %s: %w", addr, err)
	}
	banner := strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(banner, "SSH-") {
		return banner, fmt.Errorf("%s does not speak SSH (banner %q)", addr, banner)
	}
	return banner, nil
}

// ProbeAuth performs a full SSH handshake and authentication using the
// given connection options, then immediately disconnects.
func ProbeAuth(opts deploy.Options) (time.Duration, error) {
	start := time.Now()
	client, err := deploy.Connect(opts)
	if err != nil {
		return 0, err
	}
	client.Close()
	return time.Since(start), nil
}

// Run executes the probe sequence against a target. Later steps are
// skipped once the transport is known to be down.
func Run(opts deploy.Options) Result {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	addr := opts.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
		opts.Addr = addr
	}

	r := Result{Addr: addr}

	r.TCPLatency, r.TCPErr = ProbeTCP(addr, timeout)
	if r.TCPErr != nil {
		return r
	}
	r.Reachable = true

	r.Banner, r.BannerErr = ProbeBanner(addr, timeout)

	r.AuthLatency, r.AuthErr = ProbeAuth(opts)
	r.AuthOK = r.AuthErr == nil

	return r
}
