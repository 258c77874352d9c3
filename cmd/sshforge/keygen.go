// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/i18n"
	"github.com/veidt/sshforge/internal/sshkey"
)

// newKeygenCmd builds the 'keygen' command. It generates an SSH key pair
// and writes it into the user's .ssh directory, prompting before
// clobbering an existing key.
func newKeygenCmd() *cobra.Command {
	var (
		keyType      string
		bits         int
		comment      string
		outFile      string
		noPassphrase bool
		toClipboard  bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an SSH key pair",
		Long: `Generates a new SSH key pair and writes it to the local .ssh directory.
The directory is created with mode 0700 and the private key with 0600.
Existing key files are only overwritten after confirmation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			algo := sshkey.Algorithm(keyType)
			switch algo {
			case sshkey.AlgoEd25519, sshkey.AlgoECDSA, sshkey.AlgoRSA:
			default:
				return fmt.Errorf("unsupported key type %q (use ed25519, ecdsa or rsa)", keyType)
			}

			if comment == "" {
				host, _ := os.Hostname()
				comment = fmt.Sprintf("%s@%s", os.Getenv("USER"), host)
			}

			passphrase := ""
			if !noPassphrase {
				var err error
				passphrase, err = promptPassword(i18n.T("keygen.prompt_passphrase"))
				if err != nil {
					return err
				}
				if passphrase != "" {
					again, err := promptPassword(i18n.T("keygen.prompt_passphrase_confirm"))
					if err != nil {
						return err
					}
					if passphrase != again {
						return errors.New(i18n.T("keygen.error_passphrase_mismatch"))
					}
				}
			}

			fmt.Println(i18n.T("keygen.generating", string(algo)))
			kp, err := sshkey.Generate(algo, bits, comment, passphrase)
			if err != nil {
				return errors.New(i18n.T("keygen.error_generate", err))
			}

			privatePath := outFile
			if privatePath == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				privatePath = sshkey.DefaultKeyPath(filepath.Join(home, ".ssh"), algo)
			}

			err = sshkey.WriteKeyPair(kp, privatePath, false)
			if errors.Is(err, sshkey.ErrKeyExists) {
				answer := promptForConfirmation(i18n.T("keygen.confirm_overwrite", privatePath))
				if answer != "yes" && answer != "y" {
					fmt.Println(i18n.T("keygen.aborted"))
					return nil
				}
				err = sshkey.WriteKeyPair(kp, privatePath, true)
			}
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("keygen.wrote_keys", privatePath, privatePath))
			if fp, err := sshkey.Fingerprint(kp.PublicKey); err == nil {
				fmt.Println(i18n.T("keygen.fingerprint", fp))
			}

			if toClipboard {
				if err := clipboard.WriteAll(kp.PublicKey); err == nil {
					fmt.Println(i18n.T("keygen.clipboard_copied"))
				}
			}

			_ = db.LogAction("GENERATE_KEY", fmt.Sprintf("type: %s, file: %s", algo, privatePath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyType, "type", "t", "ed25519", "key type (ed25519, ecdsa, rsa)")
	cmd.Flags().IntVarP(&bits, "bits", "b", 0, "key size in bits (rsa only, default 4096)")
	cmd.Flags().StringVarP(&comment, "comment", "C", "", "key comment (default user@hostname)")
	cmd.Flags().StringVarP(&outFile, "file", "f", "", "private key output path (default ~/.ssh/id_<type>)")
	cmd.Flags().BoolVar(&noPassphrase, "no-passphrase", false, "do not prompt for a passphrase")
	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "copy the public key to the clipboard")

	return cmd
}
