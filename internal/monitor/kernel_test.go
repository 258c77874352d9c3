// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package monitor

import (
	"testing"
)

const dmesgFixture = `[Mon Aug 24 10:00:01 2026] usb 1-1: new high-speed USB device
[Mon Aug 24 10:05:42 2026] Out of memory: Killed process 4242 (leaky-daemon) total-vm:2097152kB
[Mon Aug 24 10:05:42 2026] oom_reaper: reaped process 4242 (leaky-daemon)
[Mon Aug 24 10:06:03 2026] leaky-daemon invoked oom-killer: gfp_mask=0x140cca
[Mon Aug 24 10:12:11 2026] blk_update_request: I/O error, dev sdb, sector 204800
[Mon Aug 24 10:13:00 2026] EXT4-fs (sdb1): mounted filesystem
`

func TestScanDmesg(t *testing.T) {
	events := ScanDmesg(dmesgFixture)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}

	oom := OOMEvents(events)
	if len(oom) != 2 {
		t.Fatalf("expected 2 OOM events, got %d", len(oom))
	}
	for _, e := range oom {
		if e.Type != EventOOM {
			t.Errorf("event type = %q", e.Type)
		}
	}

	var errs int
	for _, e := range events {
		if e.Type == EventError {
			errs++
		}
	}
	if errs != 1 {
		t.Errorf("expected 1 error event, got %d", errs)
	}
}

func TestScanDmesgEmpty(t *testing.T) {
	if events := ScanDmesg(""); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
	if events := ScanDmesg("[ts] all quiet on the kernel front\n"); len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestScanDmesgCaseInsensitive(t *testing.T) {
	events := ScanDmesg("[ts] Memory cgroup OUT OF MEMORY: task in /docker killed\n")
	if len(events) != 1 || events[0].Type != EventOOM {
		t.Fatalf("unexpected events: %+v", events)
	}
}
