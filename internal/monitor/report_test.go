// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
)

func sampleAt(ts time.Time, usedMB, pct, load1 float64) Sample {
	return Sample{
		Timestamp: ts,
		Memory: MemoryStats{
			TotalMB:     8000,
			UsedMB:      usedMB,
			AvailableMB: 8000 - usedMB,
			Percent:     pct,
		},
		CPU: CPUStats{Load1: load1},
		Disks: []DiskStats{
			{Mount: "/", TotalMB: 60000, UsedMB: usedMB * 4, Percent: pct},
		},
	}
}

func TestBuildReport(t *testing.T) {
	start := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	samples := []Sample{
		sampleAt(start, 3000, 37.5, 0.5),
		sampleAt(start.Add(5*time.Minute), 6000, 75, 2.5),
		sampleAt(start.Add(10*time.Minute), 4000, 50, 1.0),
	}
	samples[0].Process = &ProcessStats{PID: 42, RSSMB: 100, Command: "leaky-daemon"}
	samples[1].Process = &ProcessStats{PID: 42, RSSMB: 400, Command: "leaky-daemon"}
	samples[2].Process = &ProcessStats{PID: 42, RSSMB: 350, Command: "leaky-daemon"}
	events := []KernelEvent{
		{Type: EventOOM, Line: "Out of memory: Killed process 42"},
		{Type: EventError, Line: "I/O error, dev sdb"},
	}

	r, err := BuildReport("db01 (root@db01.example.net)", samples, events)
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}

	if r.SampleCount != 3 {
		t.Errorf("SampleCount = %d", r.SampleCount)
	}
	if r.Duration != "10m0s" {
		t.Errorf("Duration = %q", r.Duration)
	}
	if r.Memory.PeakUsedMB != 6000 || r.Memory.PeakPercent != 75 {
		t.Errorf("memory peaks: %+v", r.Memory)
	}
	if r.Memory.MinAvailMB != 2000 {
		t.Errorf("MinAvailMB = %v", r.Memory.MinAvailMB)
	}
	if r.Memory.AvgUsedMB < 4333 || r.Memory.AvgUsedMB > 4334 {
		t.Errorf("AvgUsedMB = %v", r.Memory.AvgUsedMB)
	}
	if r.Load.Peak != 2.5 {
		t.Errorf("Load.Peak = %v", r.Load.Peak)
	}
	if len(r.DiskMax) != 1 || r.DiskMax[0].Percent != 75 {
		t.Errorf("DiskMax = %+v", r.DiskMax)
	}
	if r.Process == nil {
		t.Fatal("process summary missing")
	}
	if r.Process.PeakRSSMB != 400 || r.Process.GrowthMB != 250 {
		t.Errorf("process summary: %+v", r.Process)
	}
	if len(r.OOMEvents) != 1 || len(r.ErrorEvents) != 1 {
		t.Errorf("events: oom=%d err=%d", len(r.OOMEvents), len(r.ErrorEvents))
	}
	if !strings.Contains(r.Assessment, "out-of-memory") {
		t.Errorf("assessment should mention OOM: %q", r.Assessment)
	}
	if !strings.Contains(r.Assessment, "possible leak") {
		t.Errorf("assessment should flag the growing process: %q", r.Assessment)
	}
}

func TestBuildReportQuietRun(t *testing.T) {
	start := time.Now().UTC()
	samples := []Sample{
		sampleAt(start, 2000, 25, 0.1),
		sampleAt(start.Add(time.Minute), 2100, 26, 0.2),
	}
	r, err := BuildReport("local", samples, nil)
	if err != nil {
		t.Fatalf("BuildReport failed: %v", err)
	}
	if r.Assessment != "no memory pressure or kernel trouble observed" {
		t.Errorf("assessment = %q", r.Assessment)
	}
	if r.Process != nil {
		t.Error("no process summary expected")
	}
}

func TestBuildReportNoSamples(t *testing.T) {
	if _, err := BuildReport("local", nil, nil); err == nil {
		t.Fatal("expected error for empty sample set")
	}
}

func TestReportWriteFormats(t *testing.T) {
	dir := t.TempDir()
	samples := []Sample{sampleAt(time.Now().UTC(), 2000, 25, 0.1)}
	r, err := BuildReport("local", samples, nil)
	if err != nil {
		t.Fatal(err)
	}

	jsonPath := filepath.Join(dir, "report.json")
	if err := r.Write(jsonPath); err != nil {
		t.Fatalf("Write json failed: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("written report is not valid JSON: %v", err)
	}
	if decoded.Target != "local" {
		t.Errorf("Target = %q", decoded.Target)
	}

	yamlPath := filepath.Join(dir, "report.yaml")
	if err := r.Write(yamlPath); err != nil {
		t.Fatalf("Write yaml failed: %v", err)
	}
	data, err = os.ReadFile(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	var decodedYAML Report
	if err := yaml.Unmarshal(data, &decodedYAML); err != nil {
		t.Fatalf("written report is not valid YAML: %v", err)
	}
	if decodedYAML.SampleCount != 1 {
		t.Errorf("SampleCount = %d", decodedYAML.SampleCount)
	}
}

func TestReportWriteCompressed(t *testing.T) {
	dir := t.TempDir()
	samples := []Sample{sampleAt(time.Now().UTC(), 2000, 25, 0.1)}
	r, err := BuildReport("local", samples, nil)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "report.json.zst")
	if err := r.Write(path); err != nil {
		t.Fatalf("Write compressed failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".zst")); !os.IsNotExist(err) {
		t.Error("uncompressed report should be removed")
	}
}
