// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{
		"cat /proc/meminfo":                meminfoFixture,
		"cat /proc/loadavg":                "0.10 0.20 0.30 1/100 999",
		"df -kP":                           dfFixture,
		"dmesg --ctime 2>/dev/null || dmesg": dmesgFixture,
	}}
}

func TestMonitorRun(t *testing.T) {
	dir := t.TempDir()
	m := &Monitor{
		Sampler:  &Sampler{Runner: testRunner()},
		Interval: 20 * time.Millisecond,
		LogDir:   dir,
	}

	var calls int
	var firstFresh int
	m.OnSample = func(n int, s Sample, fresh []KernelEvent) {
		calls++
		if n == 1 {
			firstFresh = len(fresh)
		} else if len(fresh) != 0 {
			t.Errorf("repeated dmesg lines must not be re-reported, got %d", len(fresh))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(m.Samples()) < 2 {
		t.Fatalf("expected at least 2 samples, got %d", len(m.Samples()))
	}
	if calls != len(m.Samples()) {
		t.Errorf("OnSample calls = %d, samples = %d", calls, len(m.Samples()))
	}
	if firstFresh != 3 {
		t.Errorf("first sample should report all 3 kernel events, got %d", firstFresh)
	}
	if len(m.Events()) != 3 {
		t.Errorf("expected 3 deduplicated events, got %d", len(m.Events()))
	}

	logged, err := ReadSampleLog(m.LogPath())
	if err != nil {
		t.Fatalf("ReadSampleLog failed: %v", err)
	}
	if len(logged) != len(m.Samples()) {
		t.Errorf("log has %d samples, run took %d", len(logged), len(m.Samples()))
	}
}

func TestMonitorRunRejectsZeroInterval(t *testing.T) {
	m := &Monitor{Sampler: &Sampler{Runner: testRunner()}}
	if err := m.Run(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestArchiveLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &Monitor{
		Sampler:  &Sampler{Runner: testRunner()},
		Interval: 10 * time.Millisecond,
		LogDir:   dir,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	plain := m.LogPath()

	archive, err := m.ArchiveLog()
	if err != nil {
		t.Fatalf("ArchiveLog failed: %v", err)
	}
	if !strings.HasSuffix(archive, ".zst") {
		t.Errorf("archive path = %q", archive)
	}
	if _, err := os.Stat(plain); !os.IsNotExist(err) {
		t.Error("uncompressed log should be removed after archiving")
	}

	samples, err := ReadSampleLog(archive)
	if err != nil {
		t.Fatalf("ReadSampleLog on archive failed: %v", err)
	}
	if len(samples) != len(m.Samples()) {
		t.Errorf("archive has %d samples, run took %d", len(samples), len(m.Samples()))
	}
}

func TestReadSampleLogMissing(t *testing.T) {
	if _, err := ReadSampleLog(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("expected error for missing log")
	}
}
