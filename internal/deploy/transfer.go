// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains scp-style file transfer over the SFTP channel.
package deploy

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/veidt/sshforge/internal/logging"
)

// TransferStats summarizes a completed transfer.
type TransferStats struct {
	Files int
	Bytes int64
}

// Upload copies a local file or directory tree to the remote path.
// Directories are copied recursively, preserving relative layout.
func (c *Client) Upload(localPath, remotePath string) (TransferStats, error) {
	var stats TransferStats

	info, err := os.Stat(localPath)
	if err != nil {
		return stats, fmt.Errorf("cannot stat %s: %w", localPath, err)
	}

	if !info.IsDir() {
		n, err := c.uploadFile(localPath, remotePath)
		if err != nil {
			return stats, err
		}
		stats.Files, stats.Bytes = 1, n
		return stats, nil
	}

	root := filepath.Clean(localPath)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		target := remotePath
		if rel != "." {
			target = path.Join(remotePath, filepath.ToSlash(rel))
		}
		if d.IsDir() {
			// MkdirAll tolerates already-existing directories.
			return c.sftp.MkdirAll(target)
		}
		n, err := c.uploadFile(p, target)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Download copies a remote file or directory tree to the local path.
func (c *Client) Download(remotePath, localPath string) (TransferStats, error) {
	var stats TransferStats

	info, err := c.sftp.Stat(remotePath)
	if err != nil {
		return stats, fmt.Errorf("cannot stat remote %s: %w", remotePath, err)
	}

	if !info.IsDir() {
		n, err := c.downloadFile(remotePath, localPath)
		if err != nil {
			return stats, err
		}
		stats.Files, stats.Bytes = 1, n
		return stats, nil
	}

	walker := c.sftp.Walk(remotePath)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return stats, err
		}
		rel := strings.TrimPrefix(walker.Path(), remotePath)
		rel = strings.TrimPrefix(rel, "/")
		target := localPath
		if rel != "" {
			target = filepath.Join(localPath, filepath.FromSlash(rel))
		}
		if walker.Stat().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return stats, err
			}
			continue
		}
		n, err := c.downloadFile(walker.Path(), target)
		if err != nil {
			return stats, err
		}
		stats.Files++
		stats.Bytes += n
	}
	return stats, nil
}

// uploadFile copies one local file to the remote, creating parent
// directories as needed.
func (c *Client) uploadFile(localPath, remotePath string) (int64, error) {
	logging.Debugf("uploading %s -> %s", localPath, remotePath)

	src, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := c.sftp.MkdirAll(dir); err != nil {
			return 0, fmt.Errorf("failed to create remote directory %s: %w", dir, err)
		}
	}

	dst, err := c.sftp.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", remotePath, err)
	}
	return n, nil
}

// downloadFile copies one remote file to the local filesystem, creating
// parent directories as needed.
func (c *Client) downloadFile(remotePath, localPath string) (int64, error) {
	logging.Debugf("downloading %s -> %s", remotePath, localPath)

	src, err := c.sftp.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	dst, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return n, nil
}
