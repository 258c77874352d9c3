// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// MemorySummary aggregates memory usage across a run.
type MemorySummary struct {
	PeakUsedMB    float64 `json:"peak_used_mb" yaml:"peak_used_mb"`
	PeakPercent   float64 `json:"peak_percent" yaml:"peak_percent"`
	AvgUsedMB     float64 `json:"avg_used_mb" yaml:"avg_used_mb"`
	AvgPercent    float64 `json:"avg_percent" yaml:"avg_percent"`
	MinAvailMB    float64 `json:"min_available_mb" yaml:"min_available_mb"`
	PeakSwapMB    float64 `json:"peak_swap_used_mb" yaml:"peak_swap_used_mb"`
	SwapWasActive bool    `json:"swap_was_active" yaml:"swap_was_active"`
}

// LoadSummary aggregates the 1-minute load average across a run.
type LoadSummary struct {
	Peak float64 `json:"peak" yaml:"peak"`
	Avg  float64 `json:"avg" yaml:"avg"`
}

// ProcessSummary tracks the watched process's memory footprint over the
// run; a steadily growing RSS is the classic leak signature.
type ProcessSummary struct {
	PID        int     `json:"pid" yaml:"pid"`
	Command    string  `json:"command" yaml:"command"`
	FirstRSSMB float64 `json:"first_rss_mb" yaml:"first_rss_mb"`
	LastRSSMB  float64 `json:"last_rss_mb" yaml:"last_rss_mb"`
	PeakRSSMB  float64 `json:"peak_rss_mb" yaml:"peak_rss_mb"`
	GrowthMB   float64 `json:"growth_mb" yaml:"growth_mb"`
}

// Report summarizes one monitoring run.
type Report struct {
	Target      string          `json:"target" yaml:"target"`
	StartedAt   time.Time       `json:"started_at" yaml:"started_at"`
	EndedAt     time.Time       `json:"ended_at" yaml:"ended_at"`
	Duration    string          `json:"duration" yaml:"duration"`
	SampleCount int             `json:"sample_count" yaml:"sample_count"`
	Memory      MemorySummary   `json:"memory" yaml:"memory"`
	Load        LoadSummary     `json:"load" yaml:"load"`
	DiskMax     []DiskStats     `json:"disk_max" yaml:"disk_max"`
	Process     *ProcessSummary `json:"process,omitempty" yaml:"process,omitempty"`
	OOMEvents   []KernelEvent   `json:"oom_events" yaml:"oom_events"`
	ErrorEvents []KernelEvent   `json:"error_events" yaml:"error_events"`
	Assessment  string          `json:"assessment" yaml:"assessment"`
}

// BuildReport aggregates a run's samples and kernel events into a
// report. target names the monitored machine for the report header.
func BuildReport(target string, samples []Sample, events []KernelEvent) (Report, error) {
	if len(samples) == 0 {
		return Report{}, fmt.Errorf("cannot build a report from zero samples")
	}

	first, last := samples[0], samples[len(samples)-1]
	r := Report{
		Target:      target,
		StartedAt:   first.Timestamp,
		EndedAt:     last.Timestamp,
		Duration:    last.Timestamp.Sub(first.Timestamp).Round(time.Second).String(),
		SampleCount: len(samples),
	}

	var usedSum, pctSum, loadSum float64
	diskMax := map[string]DiskStats{}
	r.Memory.MinAvailMB = first.Memory.AvailableMB
	for _, s := range samples {
		usedSum += s.Memory.UsedMB
		pctSum += s.Memory.Percent
		loadSum += s.CPU.Load1

		if s.Memory.UsedMB > r.Memory.PeakUsedMB {
			r.Memory.PeakUsedMB = s.Memory.UsedMB
		}
		if s.Memory.Percent > r.Memory.PeakPercent {
			r.Memory.PeakPercent = s.Memory.Percent
		}
		if s.Memory.AvailableMB < r.Memory.MinAvailMB {
			r.Memory.MinAvailMB = s.Memory.AvailableMB
		}
		if s.Swap.UsedMB > r.Memory.PeakSwapMB {
			r.Memory.PeakSwapMB = s.Swap.UsedMB
		}
		if s.CPU.Load1 > r.Load.Peak {
			r.Load.Peak = s.CPU.Load1
		}
		for _, d := range s.Disks {
			if prev, ok := diskMax[d.Mount]; !ok || d.Percent > prev.Percent {
				diskMax[d.Mount] = d
			}
		}
	}
	n := float64(len(samples))
	r.Memory.AvgUsedMB = round2(usedSum / n)
	r.Memory.AvgPercent = round2(pctSum / n)
	r.Memory.SwapWasActive = r.Memory.PeakSwapMB > 0
	r.Load.Avg = round2(loadSum / n)

	for _, d := range diskMax {
		r.DiskMax = append(r.DiskMax, d)
	}
	sortDisks(r.DiskMax)

	if first.Process != nil && last.Process != nil {
		ps := &ProcessSummary{
			PID:        first.Process.PID,
			Command:    first.Process.Command,
			FirstRSSMB: first.Process.RSSMB,
			LastRSSMB:  last.Process.RSSMB,
		}
		for _, s := range samples {
			if s.Process != nil && s.Process.RSSMB > ps.PeakRSSMB {
				ps.PeakRSSMB = s.Process.RSSMB
			}
		}
		ps.GrowthMB = round2(ps.LastRSSMB - ps.FirstRSSMB)
		r.Process = ps
	}

	r.OOMEvents = OOMEvents(events)
	for _, e := range events {
		if e.Type == EventError {
			r.ErrorEvents = append(r.ErrorEvents, e)
		}
	}

	r.Assessment = assess(r)
	return r, nil
}

// assess produces a one-line verdict from the aggregated numbers.
func assess(r Report) string {
	var findings []string
	if len(r.OOMEvents) > 0 {
		findings = append(findings,
			fmt.Sprintf("%d out-of-memory event(s) in the kernel log", len(r.OOMEvents)))
	}
	if r.Memory.PeakPercent >= 90 {
		findings = append(findings,
			fmt.Sprintf("memory peaked at %.1f%%", r.Memory.PeakPercent))
	}
	if r.Memory.SwapWasActive {
		findings = append(findings,
			fmt.Sprintf("swap in use (peak %.1f MB)", r.Memory.PeakSwapMB))
	}
	if r.Process != nil && r.Process.GrowthMB > 50 {
		findings = append(findings,
			fmt.Sprintf("watched process grew by %.1f MB, possible leak", r.Process.GrowthMB))
	}
	if len(findings) == 0 {
		return "no memory pressure or kernel trouble observed"
	}
	return strings.Join(findings, "; ")
}

// sortDisks orders by mount point for stable output.
func sortDisks(disks []DiskStats) {
	for i := 1; i < len(disks); i++ {
		for j := i; j > 0 && disks[j].Mount < disks[j-1].Mount; j-- {
			disks[j], disks[j-1] = disks[j-1], disks[j]
		}
	}
}

// Write stores the report at path, choosing the encoding from the file
// extension: .yaml/.yml for YAML, anything else JSON. A .zst suffix
// additionally compresses the result.
func (r Report) Write(path string) error {
	compress := false
	plainPath := path
	if filepath.Ext(path) == ".zst" {
		compress = true
		plainPath = strings.TrimSuffix(path, ".zst")
	}

	var data []byte
	var err error
	switch filepath.Ext(plainPath) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		data, err = json.MarshalIndent(r, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(plainPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if compress {
		if _, err := CompressFile(plainPath); err != nil {
			return err
		}
		if err := os.Remove(plainPath); err != nil {
			return fmt.Errorf("failed to remove uncompressed report: %w", err)
		}
	}
	return nil
}
