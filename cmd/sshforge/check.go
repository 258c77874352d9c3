// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/veidt/sshforge/internal/check"
	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/model"
)

// newCheckCmd builds the 'check' command. With a target it runs a
// detailed, step-by-step connectivity test; without one it fans out over
// all active inventory hosts in parallel.
func newCheckCmd() *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "check [target]",
		Short: "Test SSH connectivity to one or all hosts",
		Long: `Probes a host layer by layer: TCP reachability, the SSH protocol
banner, and an authenticated handshake. Each result is stored in the
check history. With no target, all active inventory hosts are checked in
parallel. The command exits non-zero when any check fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				host, err := targetHost(args[0])
				if err != nil {
					return err
				}
				if history > 0 {
					return showHistory(host, history)
				}
				return checkOne(cmd, host, true)
			}

			hosts, err := db.GetAllActiveHosts()
			if err != nil {
				return err
			}

			checkTask := parallelTask{
				name:       "connectivity check",
				successLog: "CHECK_SUCCESS",
				failLog:    "CHECK_FAIL",
				taskFunc: func(h model.Host) (string, error) {
					if err := checkOne(cmd, h, false); err != nil {
						return i18n.T("check.result_fail", h.String(), err), err
					}
					return i18n.T("check.result_ok", h.String()), nil
				},
			}
			if failed := runParallelTasks(hosts, checkTask); failed > 0 {
				return fmt.Errorf("%d host(s) failed the connectivity check", failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "show the last N stored check results instead of probing")
	return cmd
}

// checkOne probes a single host and stores the outcome when the host is
// part of the inventory. verbose selects the step-by-step output used for
// single targets; the parallel fan-out prints one line per host instead.
func checkOne(cmd *cobra.Command, host model.Host, verbose bool) error {
	opts, err := connectOptions(cmd, host)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Println(i18n.T("check.checking", host.String()))
	}

	result := check.Run(opts)

	if verbose {
		if result.TCPErr != nil {
			fmt.Println(i18n.T("check.tcp_fail", result.Addr, result.TCPErr))
		} else {
			fmt.Println(i18n.T("check.tcp_ok", result.Addr, result.TCPLatency.Milliseconds()))
			if result.Banner != "" {
				fmt.Println(i18n.T("check.banner", result.Banner))
			}
			if key, err := deploy.GetRemoteHostKey(result.Addr, cfg.SSH.ConnectTimeout); err == nil {
				fmt.Println(i18n.T("check.hostkey", key.Type(), ssh.FingerprintSHA256(key)))
			}
			if result.AuthErr != nil {
				fmt.Println(i18n.T("check.auth_fail", result.AuthErr))
			} else {
				fmt.Println(i18n.T("check.auth_ok", result.AuthLatency.Milliseconds()))
			}
		}
	}

	if host.ID != 0 {
		if err := db.AddCheckResult(result.ToCheckResult(host.ID)); err != nil {
			return err
		}
	}

	err = result.Err()
	if verbose {
		if err != nil {
			fmt.Println(i18n.T("check.result_fail", host.String(), err))
		} else {
			fmt.Println(i18n.T("check.result_ok", host.String()))
		}
	}
	return err
}

// showHistory prints the last stored check results for an inventory host.
func showHistory(host model.Host, limit int) error {
	if host.ID == 0 {
		return errors.New(i18n.T("hosts.error_not_found", host.String()))
	}
	results, err := db.RecentCheckResults(host.ID, limit)
	if err != nil {
		return err
	}
	for _, r := range results {
		line := fmt.Sprintf("%s  %-15s %4dms", r.CheckedAt.Format("2006-01-02 15:04:05"), r.Status(), r.LatencyMS)
		if r.Detail != "" {
			line += "  " + r.Detail
		}
		fmt.Println(line)
	}
	return nil
}
