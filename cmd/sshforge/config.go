// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veidt/sshforge/internal/config"
	"github.com/veidt/sshforge/internal/i18n"
)

// newConfigCmd builds the 'config' command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the sshforge configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

// newConfigInitCmd builds 'config init', which persists the effective
// configuration (defaults, file, environment and flags resolved) to the
// per-user or system-wide location.
func newConfigInitCmd() *cobra.Command {
	var system bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to its standard location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Write(&cfg, system)
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("config.written", path))
			return nil
		},
	}

	cmd.Flags().BoolVar(&system, "system", false, "write the system-wide config instead of the per-user one")
	return cmd
}
