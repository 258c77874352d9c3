// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains logic for generating new SSH key pairs.
package sshkey

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Algorithm identifies a supported key generation algorithm.
type Algorithm string

const (
	AlgoEd25519 Algorithm = "ed25519"
	AlgoECDSA   Algorithm = "ecdsa"
	AlgoRSA     Algorithm = "rsa"
)

// ErrKeyExists is returned by WriteKeyPair when the target private key file
// already exists and overwrite was not requested.
var ErrKeyExists = errors.New("key file already exists")

// KeyPair holds a freshly generated key pair in its serialized forms:
// the public key as a single authorized_keys line and the private key as
// an OpenSSH PEM block.
type KeyPair struct {
	Algorithm  Algorithm
	PublicKey  string
	PrivateKey string
}

// Generate creates a new key pair for the given algorithm and returns it
// as formatted strings: the public key in authorized_keys format and the
// private key in the OpenSSH PEM format. For RSA, bits selects the modulus
// size (minimum 2048, default 4096 when zero); ed25519 and ecdsa ignore it.
// If a non-empty passphrase is provided, the private key is encrypted with it.
func Generate(algo Algorithm, bits int, comment, passphrase string) (*KeyPair, error) {
	var signerKey any
	switch algo {
	case AlgoEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}
		signerKey = priv
	case AlgoECDSA:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ecdsa key pair: %w", err)
		}
		signerKey = priv
	case AlgoRSA:
		if bits == 0 {
			bits = 4096
		}
		if bits < 2048 {
			return nil, fmt.Errorf("rsa key size %d is below the 2048-bit minimum", bits)
		}
		priv, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("failed to generate rsa key pair: %w", err)
		}
		signerKey = priv
	default:
		return nil, fmt.Errorf("unsupported key algorithm %q", algo)
	}

	signer, err := ssh.NewSignerFromKey(signerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}
	pubKeyBytes := ssh.MarshalAuthorizedKey(signer.PublicKey())
	publicKeyString := strings.TrimSpace(string(pubKeyBytes))
	if comment != "" {
		publicKeyString = fmt.Sprintf("%s %s", publicKeyString, comment)
	}

	var pemBlock *pem.Block
	if passphrase == "" {
		pemBlock, err = ssh.MarshalPrivateKey(signerKey, comment)
	} else {
		pemBlock, err = ssh.MarshalPrivateKeyWithPassphrase(signerKey, comment, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &KeyPair{
		Algorithm:  algo,
		PublicKey:  publicKeyString,
		PrivateKey: string(pem.EncodeToMemory(pemBlock)),
	}, nil
}

// DefaultKeyPath returns the conventional private key path for an
// algorithm inside the given .ssh directory (e.g. ~/.ssh/id_ed25519).
func DefaultKeyPath(sshDir string, algo Algorithm) string {
	return filepath.Join(sshDir, "id_"+string(algo))
}

// WriteKeyPair writes the private and public key files next to each other,
// creating the parent directory with mode 0700 if needed. The private key
// is written 0600 and the public key 0644, matching OpenSSH conventions.
// When overwrite is false and the private key file exists, ErrKeyExists is
// returned and nothing is written.
func WriteKeyPair(kp *KeyPair, privatePath string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(privatePath), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	if !overwrite {
		if _, err := os.Stat(privatePath); err == nil {
			return fmt.Errorf("%w: %s", ErrKeyExists, privatePath)
		}
	}

	if err := os.WriteFile(privatePath, []byte(kp.PrivateKey), 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(privatePath+".pub", []byte(kp.PublicKey+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// LoadSigner reads and parses a private key file, decrypting it with the
// passphrase when one is required.
func LoadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt private key %s: %w", path, err)
		}
		return signer, nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}
	return signer, nil
}
