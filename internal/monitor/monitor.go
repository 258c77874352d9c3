// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/veidt/sshforge/internal/logging"
)

// Monitor samples a target machine at a fixed interval, appends each
// sample to a JSONL log and tracks kernel events between runs.
type Monitor struct {
	Sampler  *Sampler
	Interval time.Duration
	// LogDir receives one samples-<timestamp>.jsonl file per run. Empty
	// disables log writing.
	LogDir string
	// OnSample, when set, is invoked after each successful sample with
	// its 1-based index and any new kernel events seen since the last one.
	OnSample func(n int, s Sample, newEvents []KernelEvent)

	samples   []Sample
	events    []KernelEvent
	seen      map[string]bool
	logPath   string
	startedAt time.Time
}

// Samples returns everything collected so far.
func (m *Monitor) Samples() []Sample { return m.samples }

// Events returns all kernel events observed so far.
func (m *Monitor) Events() []KernelEvent { return m.events }

// LogPath returns the JSONL file of the current run, or empty when log
// writing is disabled.
func (m *Monitor) LogPath() string { return m.logPath }

// StartedAt returns when Run began.
func (m *Monitor) StartedAt() time.Time { return m.startedAt }

// Run samples immediately and then at every interval tick until the
// context is cancelled. Cancellation is the normal way to stop a run and
// is not reported as an error.
func (m *Monitor) Run(ctx context.Context) error {
	if m.Interval <= 0 {
		return fmt.Errorf("sampling interval must be positive, got %v", m.Interval)
	}
	m.startedAt = time.Now().UTC()
	m.seen = map[string]bool{}

	var logFile *os.File
	if m.LogDir != "" {
		if err := os.MkdirAll(m.LogDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		m.logPath = filepath.Join(m.LogDir,
			fmt.Sprintf("samples-%s.jsonl", m.startedAt.Format("20060102-150405")))
		var err error
		logFile, err = os.OpenFile(m.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open sample log: %w", err)
		}
		defer logFile.Close()
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		if err := m.step(logFile); err != nil {
			logging.Warnf("sample failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// step takes one sample, scans for new kernel events and appends the
// sample to the log file.
func (m *Monitor) step(logFile *os.File) error {
	sample, err := m.Sampler.Collect()
	if err != nil {
		return err
	}
	m.samples = append(m.samples, sample)

	var fresh []KernelEvent
	for _, e := range m.Sampler.CollectKernelEvents() {
		if m.seen[e.Line] {
			continue
		}
		m.seen[e.Line] = true
		m.events = append(m.events, e)
		fresh = append(fresh, e)
	}

	if logFile != nil {
		line, err := json.Marshal(sample)
		if err == nil {
			_, err = logFile.Write(append(line, '\n'))
		}
		if err != nil {
			logging.Warnf("failed to append sample log: %v", err)
		}
	}

	if m.OnSample != nil {
		m.OnSample(len(m.samples), sample, fresh)
	}
	return nil
}

// ArchiveLog compresses the run's JSONL log with zstd and removes the
// original. Returns the archive path.
func (m *Monitor) ArchiveLog() (string, error) {
	if m.logPath == "" {
		return "", fmt.Errorf("no sample log to archive")
	}
	archive, err := CompressFile(m.logPath)
	if err != nil {
		return "", err
	}
	if err := os.Remove(m.logPath); err != nil {
		logging.Warnf("failed to remove uncompressed log: %v", err)
	}
	return archive, nil
}

// CompressFile writes a zstd-compressed copy of path next to it with a
// .zst suffix and returns the new path.
func CompressFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	archivePath := path + ".zst"
	dst, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", archivePath, err)
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return "", fmt.Errorf("failed to initialize compressor: %w", err)
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archive %s: %w", archivePath, err)
	}
	return archivePath, nil
}

// ReadSampleLog loads samples back from a JSONL log, transparently
// decompressing .zst archives.
func ReadSampleLog(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".zst" {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize decompressor: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var samples []Sample
	dec := json.NewDecoder(r)
	for {
		var s Sample
		if err := dec.Decode(&s); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("malformed sample log %s: %w", path, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
