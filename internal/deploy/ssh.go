// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// package deploy provides SSH connectivity to remote hosts: dialing with
// pinned host key verification, running commands, and file operations over
// SFTP (authorized_keys installs and scp-style transfers).
package deploy // import "github.com/veidt/sshforge/internal/deploy"

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"

	"github.com/veidt/sshforge/internal/db"
)

// Options configures a connection to a remote host.
type Options struct {
	User string
	// Addr is the host:port dial address.
	Addr string
	// Signer is an explicit private key to authenticate with. Optional;
	// the SSH agent is always tried as well.
	Signer ssh.Signer
	// Password enables password authentication as a last resort.
	Password string
	// Timeout bounds the TCP dial and handshake. Zero means 10s.
	Timeout time.Duration
	// KnownHostsFallback permits verifying against ~/.ssh/known_hosts when
	// the store has no pinned key for the host.
	KnownHostsFallback bool
}

// Client wraps an established SSH connection and its SFTP channel.
type Client struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// Connect dials the remote host and opens an SFTP channel. The host key is
// verified against the pinned key in the store, with an optional fallback
// to the user's known_hosts file.
func Connect(opts Options) (*Client, error) {
	config, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}

	addr := opts.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connection to %s failed: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	return &Client{ssh: client, sftp: sftpClient}, nil
}

// clientConfig assembles the ssh.ClientConfig for the given options.
func clientConfig(opts Options) (*ssh.ClientConfig, error) {
	var auths []ssh.AuthMethod
	if opts.Signer != nil {
		auths = append(auths, ssh.PublicKeys(opts.Signer))
	}
	if agentClient := getSSHAgent(); agentClient != nil {
		auths = append(auths, ssh.PublicKeysCallback(agentClient.Signers))
	}
	if opts.Password != "" {
		auths = append(auths, ssh.Password(opts.Password))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("no authentication method available (no key given and no ssh agent found)")
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auths,
		HostKeyCallback: hostKeyCallback(opts.KnownHostsFallback),
		Timeout:         timeout,
	}, nil
}

// hostKeyCallback verifies the remote host key against the pinned key in
// the store. Unknown hosts are rejected with a hint to run `hosts trust`,
// unless the known_hosts fallback is enabled and matches.
func hostKeyCallback(allowKnownHostsFallback bool) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		// The hostname passed to the callback can include the port; strip it
		// so the store lookup uses the bare name.
		host, _, err := net.SplitHostPort(hostname)
		if err != nil {
			host = hostname
		}

		presentedKey := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))

		pinned, err := db.GetHostKey(host)
		if err != nil {
			return fmt.Errorf("failed to query pinned host keys: %w", err)
		}

		if pinned == nil {
			if allowKnownHostsFallback {
				if err := knownHostsVerify(hostname, remote, key); err == nil {
					return nil
				}
			}
			return fmt.Errorf("unknown host key for %s. run 'sshforge hosts trust %s' to pin it", host, host)
		}

		if strings.TrimSpace(pinned.KeyData) != presentedKey {
			return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
		}

		return nil
	}
}

// knownHostsVerify checks a host key against the user's known_hosts file.
func knownHostsVerify(hostname string, remote net.Addr, key ssh.PublicKey) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	kh, err := knownhosts.NewDB(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return err
	}
	return kh.HostKeyCallback()(hostname, remote, key)
}

// Run executes a command on the remote host and returns its combined
// trimmed stdout. Stderr is included in the returned error on failure.
func (c *Client) Run(cmd string) (string, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return "", fmt.Errorf("could not create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run(cmd); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("remote command %q failed: %w: %s", cmd, err, msg)
		}
		return "", fmt.Errorf("remote command %q failed: %w", cmd, err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// SFTP exposes the underlying SFTP client for file transfer helpers.
func (c *Client) SFTP() *sftp.Client {
	return c.sftp
}

// Close closes the SFTP channel and the SSH connection.
func (c *Client) Close() {
	if c.sftp != nil {
		c.sftp.Close()
	}
	if c.ssh != nil {
		c.ssh.Close()
	}
}

// InstallAuthorizedKey merges a public key line into the remote account's
// ~/.ssh/authorized_keys using pure SFTP, writing atomically. It returns
// false when the key was already present and nothing was changed.
func (c *Client) InstallAuthorizedKey(pubLine string) (bool, error) {
	pubLine = strings.TrimSpace(pubLine)

	// 1. Ensure .ssh exists with correct permissions.
	sshDir := ".ssh"
	_ = c.sftp.Mkdir(sshDir) // Ignore error if it already exists.
	if err := c.sftp.Chmod(sshDir, 0o700); err != nil {
		return false, fmt.Errorf("failed to chmod .ssh directory: %w", err)
	}

	// 2. Read the current file, tolerating absence.
	finalPath := path.Join(sshDir, "authorized_keys")
	existing, err := c.readFile(finalPath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read remote authorized_keys: %w", err)
	}

	merged, changed := mergeAuthorizedKeys(string(existing), pubLine)
	if !changed {
		return false, nil
	}

	// 3. Upload to a temporary file in the same directory for atomic rename.
	tmpPath := path.Join(sshDir, fmt.Sprintf("authorized_keys.sshforge.%d", time.Now().UnixNano()))
	f, err := c.sftp.Create(tmpPath)
	if err != nil {
		return false, fmt.Errorf("failed to create temporary file on remote: %w", err)
	}
	if _, err := f.Write([]byte(merged)); err != nil {
		f.Close()
		_ = c.sftp.Remove(tmpPath)
		return false, fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	f.Close()

	if err := c.sftp.Chmod(tmpPath, 0o600); err != nil {
		_ = c.sftp.Remove(tmpPath)
		return false, fmt.Errorf("failed to chmod temporary file: %w", err)
	}

	// 4. Atomically move the file into place.
	if err := c.sftp.Rename(tmpPath, finalPath); err != nil {
		_ = c.sftp.Remove(tmpPath)
		return false, fmt.Errorf("failed to atomically rename authorized_keys file: %w", err)
	}

	return true, nil
}

// ReadAuthorizedKeys returns the content of the remote authorized_keys file.
func (c *Client) ReadAuthorizedKeys() ([]byte, error) {
	return c.readFile(path.Join(".ssh", "authorized_keys"))
}

// HasAuthorizedKey reports whether the remote authorized_keys file
// contains the given public key, used to verify an install took effect.
func (c *Client) HasAuthorizedKey(pubLine string) (bool, error) {
	existing, err := c.ReadAuthorizedKeys()
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read remote authorized_keys: %w", err)
	}
	return containsKey(string(existing), pubLine), nil
}

// containsKey reports whether authorized_keys content already includes
// the algorithm/key-data pair of pubLine.
func containsKey(existing, pubLine string) bool {
	_, changed := mergeAuthorizedKeys(existing, strings.TrimSpace(pubLine))
	return !changed
}

func (c *Client) readFile(remotePath string) ([]byte, error) {
	f, err := c.sftp.Open(remotePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// mergeAuthorizedKeys appends pubLine to the existing authorized_keys
// content unless an entry with the same algorithm and key data is already
// present (comments are ignored for the comparison). Existing entries are
// never dropped or reordered.
func mergeAuthorizedKeys(existing, pubLine string) (merged string, changed bool) {
	newFields := strings.Fields(pubLine)
	for _, line := range strings.Split(existing, "\n") {
		fields := strings.Fields(line)
		if matchesKey(fields, newFields) {
			return existing, false
		}
	}

	merged = existing
	if merged != "" && !strings.HasSuffix(merged, "\n") {
		merged += "\n"
	}
	merged += pubLine + "\n"
	return merged, true
}

// matchesKey reports whether an existing authorized_keys line contains the
// same algorithm/key-data pair as the candidate, skipping leading options.
func matchesKey(line, candidate []string) bool {
	if len(candidate) < 2 {
		return false
	}
	for i := 0; i+1 < len(line); i++ {
		if line[i] == candidate[0] && line[i+1] == candidate[1] {
			return true
		}
	}
	return false
}

// GetRemoteHostKey connects to a host just to retrieve its public key.
// No authentication is performed; the handshake is aborted as soon as the
// server presents its key.
func GetRemoteHostKey(addr string, timeout time.Duration) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)
	const sentinel = "sshforge: successfully retrieved host key"

	if timeout == 0 {
		timeout = 5 * time.Second
	}

	config := &ssh.ClientConfig{
		User: "sshforge-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			// Returning an error aborts the handshake; we have what we need.
			return fmt.Errorf("%s", sentinel)
		},
		Timeout: timeout,
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), sentinel) {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return nil, fmt.Errorf("handshake succeeded unexpectedly, could not retrieve key")
}
