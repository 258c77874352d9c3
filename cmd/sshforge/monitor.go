// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/logging"
	"github.com/veidt/sshforge/internal/monitor"
	"github.com/veidt/sshforge/internal/provision"
)

// newMonitorCmd builds the 'monitor' command. It samples memory, load and
// disk usage of the local machine or a remote host at a fixed interval,
// scans the kernel log for OOM activity, and writes a report when
// stopped.
func newMonitorCmd() *cobra.Command {
	var (
		interval time.Duration
		duration time.Duration
		watchPID int
		format   string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "monitor [target]",
		Short: "Sample resource usage and watch for OOM events",
		Long: `Samples memory, swap, load and disk usage at a fixed interval and
scans the kernel log for out-of-memory activity. Samples are appended to
a JSONL log; on stop (Ctrl-C or --duration) the log is archived and a
summary report with peaks, averages and an assessment is written.
Without a target the local machine is monitored; with one, samples are
taken over SSH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner provision.Runner
			targetName := "local"

			if len(args) == 1 {
				host, err := targetHost(args[0])
				if err != nil {
					return err
				}
				opts, err := connectOptions(cmd, host)
				if err != nil {
					return err
				}
				client, err := deploy.Connect(opts)
				if err != nil {
					return err
				}
				defer client.Close()
				runner = remoteRunner{client: client, target: host.String()}
				targetName = host.String()
			} else {
				runner = provision.LocalRunner{}
			}

			if interval == 0 {
				interval = cfg.Monitor.Interval
			}

			m := &monitor.Monitor{
				Sampler:  &monitor.Sampler{Runner: runner, WatchPID: watchPID},
				Interval: interval,
				LogDir:   cfg.Monitor.LogDir,
				OnSample: func(n int, s monitor.Sample, fresh []monitor.KernelEvent) {
					disk := 0.0
					for _, d := range s.Disks {
						if d.Percent > disk {
							disk = d.Percent
						}
					}
					fmt.Println(i18n.T("monitor.sample", n, s.Memory.Percent, s.CPU.Load1, disk))
					if len(fresh) > 0 {
						fmt.Println(i18n.T("monitor.oom_events", len(fresh)))
						for _, e := range fresh {
							logging.Warnf("kernel: %s", e.Line)
						}
					}
				},
			}

			fmt.Println(i18n.T("monitor.starting", interval, cfg.Monitor.LogDir, cfg.Monitor.ReportDir))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			if err := m.Run(ctx); err != nil {
				return err
			}
			fmt.Println(i18n.T("monitor.stopped", len(m.Samples())))
			if len(m.Samples()) == 0 {
				return nil
			}

			if m.LogPath() != "" {
				if _, err := m.ArchiveLog(); err != nil {
					logging.Warnf("failed to archive sample log: %v", err)
				}
			}

			report, err := monitor.BuildReport(targetName, m.Samples(), m.Events())
			if err != nil {
				return err
			}
			path := reportPath(cfg.Monitor.ReportDir, m.StartedAt(), format, compress)
			if err := report.Write(path); err != nil {
				return err
			}
			fmt.Println(i18n.T("monitor.report_written", path))
			_ = db.LogAction("MONITOR_RUN", fmt.Sprintf("target: %s, samples: %d, report: %s",
				targetName, len(m.Samples()), path))
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "sampling interval (default from config)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop automatically after this long (default: run until Ctrl-C)")
	cmd.Flags().IntVar(&watchPID, "pid", 0, "also track RSS/CPU of this process ID")
	cmd.Flags().StringVar(&format, "format", "json", "report format (json, yaml)")
	cmd.Flags().BoolVar(&compress, "compress", false, "zstd-compress the report")

	return cmd
}

// reportPath builds the output path for a run's report.
func reportPath(dir string, startedAt time.Time, format string, compress bool) string {
	ext := "json"
	if format == "yaml" || format == "yml" {
		ext = "yaml"
	}
	name := fmt.Sprintf("report-%s.%s", startedAt.Format("20060102-150405"), ext)
	if compress {
		name += ".zst"
	}
	return filepath.Join(dir, name)
}

// newReportCmd builds the 'report' command, which rebuilds a summary
// report from a previously recorded sample log.
func newReportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <sample-log>",
		Short: "Build a report from a recorded sample log",
		Long: `Reads a JSONL sample log written by 'monitor' (plain or
zstd-compressed) and rebuilds the summary report from it. Kernel events
are not part of sample logs, so the rebuilt report covers resource usage
only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := monitor.ReadSampleLog(args[0])
			if err != nil {
				return err
			}
			report, err := monitor.BuildReport("recorded", samples, nil)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(cfg.Monitor.ReportDir,
					fmt.Sprintf("report-%s.json", report.StartedAt.Format("20060102-150405")))
			}
			if err := report.Write(output); err != nil {
				return err
			}
			fmt.Println(i18n.T("monitor.report_written", output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "report file (.json, .yaml, optional .zst suffix)")
	return cmd
}
