// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/sshkey"
)

// defaultPublicKey returns the first existing default public key file in
// the user's .ssh directory.
func defaultPublicKey() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	for _, name := range []string{"id_ed25519.pub", "id_ecdsa.pub", "id_rsa.pub"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no public key found in %s (run 'sshforge keygen' first)", filepath.Join(home, ".ssh"))
}

// newCopyIDCmd builds the 'copy-id' command. It installs a public key
// into the remote account's authorized_keys, creating ~/.ssh with the
// right permissions and never dropping keys that are already there.
func newCopyIDCmd() *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "copy-id <target>",
		Short: "Install a public key on a remote host",
		Long: `Appends a public key to the remote account's ~/.ssh/authorized_keys,
like ssh-copy-id. The remote .ssh directory is created with mode 0700 and
the file is replaced atomically with mode 0600. Installing a key that is
already present is a no-op. The target is an inventory label or
[user@]host[:port].`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := targetHost(args[0])
			if err != nil {
				return err
			}

			path := keyFile
			if path == "" {
				if path, err = defaultPublicKey(); err != nil {
					return err
				}
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.New(i18n.T("copyid.error_read_key", err))
			}
			pubLine := strings.TrimSpace(string(data))
			if _, _, _, err := sshkey.Parse(pubLine); err != nil {
				return errors.New(i18n.T("copyid.error_invalid_key", path, err))
			}

			opts, err := connectOptions(cmd, host)
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("copyid.installing", host.String()))
			client, err := deploy.Connect(opts)
			if err != nil {
				return err
			}
			defer client.Close()

			installed, err := client.InstallAuthorizedKey(pubLine)
			if err != nil {
				return err
			}
			if !installed {
				fmt.Println(i18n.T("copyid.already_present", host.String()))
				return nil
			}

			// Read the file back; a key that did not land is an error.
			present, err := client.HasAuthorizedKey(pubLine)
			if err != nil {
				return err
			}
			if !present {
				return errors.New(i18n.T("copyid.error_verify", host.String()))
			}

			fmt.Println(i18n.T("copyid.installed", host.String(),
				fmt.Sprintf("%s@%s", host.Username, host.Hostname)))
			_ = db.LogAction("INSTALL_KEY", fmt.Sprintf("host: %s, key: %s", host.String(), path))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyFile, "key", "k", "", "public key file to install (default: first of ~/.ssh/id_{ed25519,ecdsa,rsa}.pub)")
	return cmd
}
