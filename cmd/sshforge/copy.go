// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veidt/sshforge/internal/db"
	"github.com/veidt/sshforge/internal/deploy"
	"github.com/veidt/sshforge/internal/i18n"
)

// remoteSpec is one side of a copy operation: a target plus a path on it.
type remoteSpec struct {
	target string
	path   string
}

// parseRemoteSpec splits a scp-style argument. Remote paths look like
// [user@]host:path or label:path; everything else is local. A Windows
// drive letter ("C:\...") is not treated as a remote spec.
func parseRemoteSpec(arg string) (remoteSpec, bool) {
	colon := strings.Index(arg, ":")
	if colon <= 0 {
		return remoteSpec{}, false
	}
	if colon == 1 && len(arg) > 2 && (arg[2] == '\\' || arg[2] == '/') {
		return remoteSpec{}, false // drive letter
	}
	return remoteSpec{target: arg[:colon], path: arg[colon+1:]}, true
}

// newCopyCmd builds the 'copy' command, an scp-style file transfer over
// the managed SFTP connection.
func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy <source> <destination>",
		Short: "Copy files to or from a remote host",
		Long: `Transfers a file or directory tree over SFTP. Exactly one of the two
paths must be remote, written as [user@]host:path or label:path, the
other local. Directories are copied recursively.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcSpec, srcRemote := parseRemoteSpec(args[0])
			dstSpec, dstRemote := parseRemoteSpec(args[1])
			if srcRemote == dstRemote {
				return errors.New(i18n.T("copy.error_direction"))
			}

			spec := srcSpec
			if dstRemote {
				spec = dstSpec
			}
			host, err := targetHost(spec.target)
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

			var stats deploy.TransferStats
			if dstRemote {
				fmt.Println(i18n.T("copy.uploading", args[0], host.String(), dstSpec.path))
				stats, err = client.Upload(args[0], dstSpec.path)
			} else {
				fmt.Println(i18n.T("copy.downloading", host.String(), srcSpec.path, args[1]))
				stats, err = client.Download(srcSpec.path, args[1])
			}
			if err != nil {
				return err
			}

			fmt.Println(i18n.T("copy.done", stats.Files, stats.Bytes))
			_ = db.LogAction("TRANSFER", fmt.Sprintf("host: %s, files: %d, bytes: %d",
				host.String(), stats.Files, stats.Bytes))
			return nil
		},
	}
	return cmd
}
