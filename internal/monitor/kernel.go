// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package monitor

import (
	"strings"
)

// EventType classifies a kernel log line of interest.
type EventType string

const (
	// EventOOM marks out-of-memory activity (the OOM killer firing or
	// cgroup memory limits being hit).
	EventOOM EventType = "oom"
	// EventError marks other kernel-level trouble worth surfacing in a
	// report, such as oopses and I/O errors.
	EventError EventType = "error"
)

// KernelEvent is one dmesg line matched against the known trouble
// patterns.
type KernelEvent struct {
	Type EventType `json:"type" yaml:"type"`
	Line string    `json:"line" yaml:"line"`
}

// oomPatterns match out-of-memory activity in kernel logs. Matching is
// case-insensitive.
var oomPatterns = []string{
	"out of memory",
	"oom killer",
	"oom-killer",
	"killed process",
	"memory cgroup out of memory",
	"oom_score",
}

// errorPatterns match other kernel trouble worth reporting.
var errorPatterns = []string{
	"kernel panic",
	"call trace",
	"bug:",
	"segfault",
	"i/o error",
	"hung task",
}

// ScanDmesg classifies every line of dmesg output against the known
// trouble patterns. Unmatched lines are dropped.
func ScanDmesg(output string) []KernelEvent {
	var events []KernelEvent
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if matchesAny(lower, oomPatterns) {
			events = append(events, KernelEvent{Type: EventOOM, Line: trimmed})
			continue
		}
		if matchesAny(lower, errorPatterns) {
			events = append(events, KernelEvent{Type: EventError, Line: trimmed})
		}
	}
	return events
}

func matchesAny(line string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// CollectKernelEvents runs dmesg through the sampler's runner and scans
// the output. dmesg may be restricted to root; a failure yields an empty
// event list rather than an error so monitoring keeps going.
func (s *Sampler) CollectKernelEvents() []KernelEvent {
	out, err := s.Runner.Run("dmesg --ctime 2>/dev/null || dmesg")
	if err != nil {
		return nil
	}
	return ScanDmesg(out)
}

// OOMEvents filters a scan down to out-of-memory events.
func OOMEvents(events []KernelEvent) []KernelEvent {
	var oom []KernelEvent
	for _, e := range events {
		if e.Type == EventOOM {
			oom = append(oom, e)
		}
	}
	return oom
}
