// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for SSHForge using the Cobra
// library. It defines the root command, its subcommands (provision, check,
// keygen, copy-id, copy, hosts, monitor, report), flags, and the entry
// point for execution.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/veidt/sshforge/internal/config"
	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/logging"
	"github.com/veidt/sshforge/internal/model"
	"github.com/veidt/sshforge/internal/sshkey"
)

var version = "dev" // this will be set by the linker

var (
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command. This
// function builds the main application command as well as fresh instances
// for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sshforge",
		Short: "SSHForge sets up, verifies and monitors SSH-managed machines.",
		Long: `SSHForge takes a machine from bare to reachable and keeps an eye on it:
install and enable the OpenSSH server, generate and distribute key pairs,
verify connectivity layer by layer, transfer files, and sample resource
usage of remote hosts into reports. A database holds the host inventory,
pinned host keys and check history.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.SetDebug(debugFlag)

			var err error
			cfg, err = config.Load(cmd, cfgFile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd)
			i18n.Init(cfg.Language)

			// Only seed a default config when no file was found anywhere.
			if cfgFile == "" && cfg.FileUsed == "" {
				if written, err := config.WriteDefaultFile(""); err == nil && written != "" {
					fmt.Println(i18n.T("config.created_default"))
				}
			}

			if err := db.InitDB(cfg.Database.Type, cfg.Database.DSN); err != nil {
				return errors.New(i18n.T("config.error_init_store", err))
			}
			return nil
		},
	}

	cmd.AddCommand(newProvisionCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newCopyIDCmd())
	cmd.AddCommand(newCopyCmd())
	cmd.AddCommand(newHostsCmd())
	cmd.AddCommand(newMonitorCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newConfigCmd())

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is sshforge.yaml in the config or current directory)")
	cmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	cmd.PersistentFlags().String("db-type", "", "inventory store type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("db-dsn", "", "inventory store connection string (DSN)")
	cmd.PersistentFlags().String("lang", "", `CLI language ("en", "de")`)
	cmd.PersistentFlags().StringP("identity", "i", "", "private key file for SSH authentication")
	cmd.PersistentFlags().Bool("password", false, "prompt for an SSH password")

	return cmd
}

// applyFlagOverrides lets explicitly set persistent flags win over the
// loaded configuration.
func applyFlagOverrides(cmd *cobra.Command) {
	if f := cmd.Flags().Lookup("db-type"); f != nil && f.Changed {
		cfg.Database.Type = f.Value.String()
	}
	if f := cmd.Flags().Lookup("db-dsn"); f != nil && f.Changed {
		cfg.Database.DSN = f.Value.String()
	}
	if f := cmd.Flags().Lookup("lang"); f != nil && f.Changed {
		cfg.Language = f.Value.String()
	}
}

// parseTarget splits a [user@]host[:port] argument. The user defaults to
// the current local user and the port to 22.
func parseTarget(arg string) (model.Host, error) {
	h := model.Host{Port: 22}

	rest := arg
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		h.Username = rest[:at]
		rest = rest[at+1:]
	}
	if h.Username == "" {
		u, err := user.Current()
		if err != nil {
			return h, fmt.Errorf("cannot determine local user for target %q: %w", arg, err)
		}
		h.Username = u.Username
	}

	if host, port, err := net.SplitHostPort(rest); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return h, fmt.Errorf("invalid port in target %q", arg)
		}
		h.Hostname = host
		h.Port = p
	} else {
		h.Hostname = rest
	}

	if h.Hostname == "" {
		return h, fmt.Errorf("target %q has no hostname", arg)
	}
	return h, nil
}

// targetHost resolves a CLI target argument to a host. Inventory labels
// match first, then a [user@]host[:port] form is looked up in the
// inventory; an unknown target yields an ad-hoc host with ID 0 that is
// not persisted.
func targetHost(arg string) (model.Host, error) {
	if db.IsInitialized() {
		hosts, err := db.GetAllHosts()
		if err == nil {
			for _, h := range hosts {
				if h.Label != "" && h.Label == arg {
					return h, nil
				}
			}
		}
	}

	parsed, err := parseTarget(arg)
	if err != nil {
		return model.Host{}, err
	}

	if db.IsInitialized() {
		if known, err := db.FindHost(parsed.Username, parsed.Hostname, parsed.Port); err == nil && known != nil {
			return *known, nil
		}
	}
	return parsed, nil
}

// connectOptions assembles SSH connection options for a host from the
// configuration and the identity/password flags.
func connectOptions(cmd *cobra.Command, h model.Host) (deploy.Options, error) {
	opts := deploy.Options{
		User:               h.Username,
		Addr:               h.Addr(),
		Timeout:            cfg.SSH.ConnectTimeout,
		KnownHostsFallback: cfg.SSH.KnownHostsFallback,
	}

	identity, _ := cmd.Flags().GetString("identity")
	if identity != "" {
		signer, err := sshkey.LoadSigner(identity, "")
		if err != nil && strings.Contains(err.Error(), "passphrase") {
			pass, perr := promptPassword(fmt.Sprintf("Enter passphrase for %s: ", identity))
			if perr != nil {
				return opts, perr
			}
			signer, err = sshkey.LoadSigner(identity, pass)
		}
		if err != nil {
			return opts, err
		}
		opts.Signer = signer
	}

	if askPass, _ := cmd.Flags().GetBool("password"); askPass {
		pass, err := promptPassword(fmt.Sprintf("%s@%s's password: ", h.Username, h.Hostname))
		if err != nil {
			return opts, err
		}
		opts.Password = pass
	}

	return opts, nil
}

// promptForConfirmation displays a prompt and reads a line from stdin.
func promptForConfirmation(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}

// promptPassword reads a secret from the terminal without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(data), nil
}
