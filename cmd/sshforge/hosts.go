// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/sshkey"
)

// newHostsCmd builds the 'hosts' command group managing the inventory.
func newHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage the host inventory",
		Long: `The inventory is the database of machines SSHForge manages: their
addresses, labels, pinned host keys and check history.`,
	}
	cmd.AddCommand(newHostsAddCmd())
	cmd.AddCommand(newHostsListCmd())
	cmd.AddCommand(newHostsRemoveCmd())
	cmd.AddCommand(newHostsEnableCmd(true))
	cmd.AddCommand(newHostsEnableCmd(false))
	cmd.AddCommand(newHostsTrustCmd())
	cmd.AddCommand(newHostsAuditCmd())
	return cmd
}

func newHostsAddCmd() *cobra.Command {
	var label, tags string

	cmd := &cobra.Command{
		Use:   "add <user@host[:port]>",
		Short: "Add a host to the inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			h.Label = label
			h.Tags = tags
			if _, err := db.AddHost(h.Username, h.Hostname, h.Port, h.Label, h.Tags); err != nil {
				return err
			}
			fmt.Println(i18n.T("hosts.added", h.String()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "short name for the host")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	return cmd
}

func newHostsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inventory hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := db.GetAllHosts()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			printed := 0
			for _, h := range hosts {
				if !all && !h.IsActive {
					continue
				}
				state := "active"
				if !h.IsActive {
					state = "disabled"
				}
				fmt.Fprintf(w, "%d\t%s\t%s@%s:%d\t%s\t%s\n",
					h.ID, h.Label, h.Username, h.Hostname, h.Port, state, h.Tags)
				printed++
			}
			w.Flush()
			if printed == 0 {
				fmt.Println(i18n.T("hosts.none"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include disabled hosts")
	return cmd
}

func newHostsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <target>",
		Short: "Remove a host from the inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := targetHost(args[0])
			if err != nil {
				return err
			}
			if h.ID == 0 {
				return errors.New(i18n.T("hosts.error_not_found", args[0]))
			}
			if err := db.DeleteHost(h.ID); err != nil {
				return err
			}
			fmt.Println(i18n.T("hosts.removed", h.String()))
			return nil
		},
	}
}

func newHostsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <target>", "Mark a host active again"
	if !enable {
		use, short = "disable <target>", "Exclude a host from fan-out operations"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := targetHost(args[0])
			if err != nil {
				return err
			}
			if h.ID == 0 {
				return errors.New(i18n.T("hosts.error_not_found", args[0]))
			}
			return db.SetHostActive(h.ID, enable)
		},
	}
}

// newHostsTrustCmd builds 'hosts trust'. It fetches a host's public key,
// shows its fingerprint and pins it in the store after confirmation.
// Every later connection requires the host to present exactly this key.
func newHostsTrustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust <target>",
		Short: "Fetch and pin a host's public key",
		Long: `Connects to a host for the first time, retrieves its public key and
prompts before pinning it in the store. Connections to the host are
refused until its key is trusted (unless the known_hosts fallback
matches).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := targetHost(args[0])
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("hosts.trust_retrieving", h.Hostname))
			key, err := deploy.GetRemoteHostKey(h.Addr(), cfg.SSH.ConnectTimeout)
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("hosts.trust_warning", h.Hostname))
			fmt.Println(i18n.T("hosts.trust_fingerprint", key.Type(), ssh.FingerprintSHA256(key)))
			if warning := sshkey.CheckHostKeyAlgorithm(key); warning != "" {
				fmt.Printf("\n%s\n", warning)
			}

			answer := promptForConfirmation(i18n.T("hosts.trust_confirm"))
			if answer != "yes" {
				fmt.Println(i18n.T("hosts.trust_abort"))
				os.Exit(1)
			}

			keyStr := string(ssh.MarshalAuthorizedKey(key))
			if err := db.PinHostKey(h.Hostname, keyStr); err != nil {
				return err
			}
			fmt.Println(i18n.T("hosts.trust_added", h.Hostname, key.Type()))
			return nil
		},
	}
}

// newHostsAuditCmd builds 'hosts audit', which prints the recorded action
// history.
func newHostsAuditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the action history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := db.AuditLog(limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Timestamp, e.Action, e.Details)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries to show")
	return cmd
}
