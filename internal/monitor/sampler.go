// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package monitor implements resource monitoring of a local or remote
// machine. Samples are taken by running plain commands through a Runner
// (the same seam provisioning uses), so the identical sampler works over
// SSH and on the local host.
package monitor // import "github.com/veidt/sshforge/internal/monitor"

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/veidt/sshforge/internal/provision"
)

// MemoryStats describes RAM usage in megabytes.
type MemoryStats struct {
	TotalMB     float64 `json:"total_mb" yaml:"total_mb"`
	AvailableMB float64 `json:"available_mb" yaml:"available_mb"`
	UsedMB      float64 `json:"used_mb" yaml:"used_mb"`
	FreeMB      float64 `json:"free_mb" yaml:"free_mb"`
	CachedMB    float64 `json:"cached_mb" yaml:"cached_mb"`
	BuffersMB   float64 `json:"buffers_mb" yaml:"buffers_mb"`
	Percent     float64 `json:"percent" yaml:"percent"`
}

// SwapStats describes swap usage in megabytes.
type SwapStats struct {
	TotalMB float64 `json:"total_mb" yaml:"total_mb"`
	UsedMB  float64 `json:"used_mb" yaml:"used_mb"`
	FreeMB  float64 `json:"free_mb" yaml:"free_mb"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// CPUStats carries the load averages.
type CPUStats struct {
	Load1  float64 `json:"load1" yaml:"load1"`
	Load5  float64 `json:"load5" yaml:"load5"`
	Load15 float64 `json:"load15" yaml:"load15"`
}

// DiskStats describes usage of one mounted filesystem.
type DiskStats struct {
	Mount   string  `json:"mount" yaml:"mount"`
	TotalMB float64 `json:"total_mb" yaml:"total_mb"`
	UsedMB  float64 `json:"used_mb" yaml:"used_mb"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// ProcessStats describes one watched process (e.g. a suspected leaker).
type ProcessStats struct {
	PID        int     `json:"pid" yaml:"pid"`
	RSSMB      float64 `json:"rss_mb" yaml:"rss_mb"`
	VSZMB      float64 `json:"vsz_mb" yaml:"vsz_mb"`
	CPUPercent float64 `json:"cpu_percent" yaml:"cpu_percent"`
	Command    string  `json:"command" yaml:"command"`
}

// Sample is one point-in-time measurement of the target machine.
type Sample struct {
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Memory    MemoryStats   `json:"memory" yaml:"memory"`
	Swap      SwapStats     `json:"swap" yaml:"swap"`
	CPU       CPUStats      `json:"cpu" yaml:"cpu"`
	Disks     []DiskStats   `json:"disks" yaml:"disks"`
	Process   *ProcessStats `json:"process,omitempty" yaml:"process,omitempty"`
}

// Sampler collects samples through a Runner.
type Sampler struct {
	Runner provision.Runner
	// WatchPID, when non-zero, adds per-process stats for that PID to
	// every sample.
	WatchPID int
}

// Collect takes one sample. Disk or process collection failures degrade
// the sample rather than failing it; memory and load are mandatory.
func (s *Sampler) Collect() (Sample, error) {
	sample := Sample{Timestamp: time.Now().UTC()}

	meminfo, err := s.Runner.Run("cat /proc/meminfo")
	if err != nil {
		return sample, fmt.Errorf("failed to read meminfo: %w", err)
	}
	sample.Memory, sample.Swap, err = ParseMeminfo(meminfo)
	if err != nil {
		return sample, err
	}

	loadavg, err := s.Runner.Run("cat /proc/loadavg")
	if err != nil {
		return sample, fmt.Errorf("failed to read loadavg: %w", err)
	}
	sample.CPU, err = ParseLoadavg(loadavg)
	if err != nil {
		return sample, err
	}

	if dfOut, err := s.Runner.Run("df -kP"); err == nil {
		sample.Disks, _ = ParseDF(dfOut)
	}

	if s.WatchPID > 0 {
		cmd := fmt.Sprintf("ps -o pid=,rss=,vsz=,pcpu=,comm= -p %d", s.WatchPID)
		if psOut, err := s.Runner.Run(cmd); err == nil {
			if proc, err := ParsePS(psOut); err == nil {
				sample.Process = &proc
			}
		}
	}

	return sample, nil
}

// ParseMeminfo extracts memory and swap statistics from /proc/meminfo
// content.
func ParseMeminfo(content string) (MemoryStats, SwapStats, error) {
	values := map[string]float64{}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		values[key] = kb / 1024 // KiB -> MiB
	}

	total, ok := values["MemTotal"]
	if !ok || total == 0 {
		return MemoryStats{}, SwapStats{}, fmt.Errorf("meminfo is missing MemTotal")
	}

	mem := MemoryStats{
		TotalMB:     round2(total),
		AvailableMB: round2(values["MemAvailable"]),
		FreeMB:      round2(values["MemFree"]),
		CachedMB:    round2(values["Cached"]),
		BuffersMB:   round2(values["Buffers"]),
	}
	mem.UsedMB = round2(total - values["MemAvailable"])
	mem.Percent = round2(mem.UsedMB / total * 100)

	swap := SwapStats{
		TotalMB: round2(values["SwapTotal"]),
		FreeMB:  round2(values["SwapFree"]),
	}
	swap.UsedMB = round2(swap.TotalMB - swap.FreeMB)
	if swap.TotalMB > 0 {
		swap.Percent = round2(swap.UsedMB / swap.TotalMB * 100)
	}

	return mem, swap, nil
}

// ParseLoadavg extracts the three load averages from /proc/loadavg content.
func ParseLoadavg(content string) (CPUStats, error) {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return CPUStats{}, fmt.Errorf("malformed loadavg %q", content)
	}
	var cpu CPUStats
	var err error
	if cpu.Load1, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return CPUStats{}, fmt.Errorf("malformed loadavg %q", content)
	}
	if cpu.Load5, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return CPUStats{}, fmt.Errorf("malformed loadavg %q", content)
	}
	if cpu.Load15, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return CPUStats{}, fmt.Errorf("malformed loadavg %q", content)
	}
	return cpu, nil
}

// ParseDF extracts per-filesystem usage from `df -kP` output. Pseudo
// filesystems (zero total size) are skipped.
func ParseDF(content string) ([]DiskStats, error) {
	var disks []DiskStats
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if i == 0 { // header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		totalKB, err1 := strconv.ParseFloat(fields[1], 64)
		usedKB, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || totalKB == 0 {
			continue
		}
		d := DiskStats{
			Mount:   fields[5],
			TotalMB: round2(totalKB / 1024),
			UsedMB:  round2(usedKB / 1024),
		}
		d.Percent = round2(d.UsedMB / d.TotalMB * 100)
		disks = append(disks, d)
	}
	return disks, nil
}

// ParsePS extracts process statistics from a headerless
// `ps -o pid=,rss=,vsz=,pcpu=,comm=` line.
func ParsePS(content string) (ProcessStats, error) {
	fields := strings.Fields(strings.TrimSpace(content))
	if len(fields) < 5 {
		return ProcessStats{}, fmt.Errorf("malformed ps output %q", content)
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return ProcessStats{}, fmt.Errorf("malformed ps pid %q", fields[0])
	}
	rssKB, _ := strconv.ParseFloat(fields[1], 64)
	vszKB, _ := strconv.ParseFloat(fields[2], 64)
	pcpu, _ := strconv.ParseFloat(fields[3], 64)
	return ProcessStats{
		PID:        pid,
		RSSMB:      round2(rssKB / 1024),
		VSZMB:      round2(vszKB / 1024),
		CPUPercent: pcpu,
		Command:    strings.Join(fields[4:], " "),
	}, nil
}

// round2 rounds to two decimal places, matching the precision the reports
// present.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
