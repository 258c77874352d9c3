// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/provision"
)

// remoteRunner adapts an SSH connection to the provisioning Runner seam.
type remoteRunner struct {
	client *deploy.Client
	target string
}

func (r remoteRunner) Run(cmd string) (string, error) { return r.client.Run(cmd) }
func (r remoteRunner) Target() string                 { return r.target }

// newProvisionCmd builds the 'provision' command. It installs, enables
// and starts the OpenSSH server on the local machine or, given a target,
// on a remote host over an existing SSH connection.
func newProvisionCmd() *cobra.Command {
	var restart bool

	cmd := &cobra.Command{
		Use:   "provision [target]",
		Short: "Install and enable the OpenSSH server",
		Long: `Runs the OpenSSH server installation sequence on a Debian-family
system: package index update, openssh-server install, service enable and
start. Without a target the local machine is provisioned, which requires
root. With a target, commands run on the remote host over SSH.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner provision.Runner

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
			} else {
				if err := provision.RequireRoot(); err != nil {
					return errors.New(i18n.T("provision.need_root"))
				}
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				runner = provision.LocalRunner{Ctx: ctx}
			}

			if restart {
				if err := provision.RestartServer(runner); err != nil {
					return err
				}
			} else {
				if err := provision.InstallServer(runner, provision.InstallSteps()); err != nil {
					return err
				}
			}

			if state, err := provision.ServiceActive(runner); err != nil {
				fmt.Println(i18n.T("provision.service_inactive", err))
				_ = db.LogAction("PROVISION_FAIL", fmt.Sprintf("target: %s, state: %s", runner.Target(), state))
				return err
			}
			fmt.Println(i18n.T("provision.service_active"))
			fmt.Println(i18n.T("provision.done"))
			_ = db.LogAction("PROVISION_SUCCESS", fmt.Sprintf("target: %s", runner.Target()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&restart, "restart", false, "restart the ssh service instead of installing")
	return cmd
}
