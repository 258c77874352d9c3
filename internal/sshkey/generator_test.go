// Copyright (c) 2025 Veidt
// SSHForge - SSH setup, access and monitoring toolkit
// This source code is licensed under the MIT license found in the LICENSE file.

package sshkey

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	xssh "golang.org/x/crypto/ssh"
)

func TestGenerateEd25519(t *testing.T) {
	kp, err := Generate(AlgoEd25519, 0, "test@example.com", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	pk, comment, _, _, err := xssh.ParseAuthorizedKey([]byte(kp.PublicKey))
	if err != nil {
		t.Fatalf("ParseAuthorizedKey failed: %v", err)
	}
	if pk.Type() != xssh.KeyAlgoED25519 {
		t.Errorf("unexpected key type: %q", pk.Type())
	}
	if comment != "test@example.com" {
		t.Errorf("unexpected comment: got %q", comment)
	}

	if _, err := xssh.ParsePrivateKey([]byte(kp.PrivateKey)); err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
}

func TestGenerateECDSA(t *testing.T) {
	kp, err := Generate(AlgoECDSA, 0, "", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	pk, _, _, _, err := xssh.ParseAuthorizedKey([]byte(kp.PublicKey))
	if err != nil {
		t.Fatalf("ParseAuthorizedKey failed: %v", err)
	}
	if pk.Type() != xssh.KeyAlgoECDSA256 {
		t.Errorf("unexpected key type: %q", pk.Type())
	}
}

func TestGenerateWithPassphrase(t *testing.T) {
	kp, err := Generate(AlgoEd25519, 0, "enc", "hunter2")
	if err != nil {
		t.Fatalf("Generate with passphrase failed: %v", err)
	}

	if _, err := xssh.ParsePrivateKey([]byte(kp.PrivateKey)); err == nil {
		t.Fatal("expected parsing without passphrase to fail")
	}
	if _, err := xssh.ParsePrivateKeyWithPassphrase([]byte(kp.PrivateKey), []byte("hunter2")); err != nil {
		t.Fatalf("ParsePrivateKeyWithPassphrase failed: %v", err)
	}
}

func TestGenerateRejectsWeakRSA(t *testing.T) {
	if _, err := Generate(AlgoRSA, 1024, "", ""); err == nil {
		t.Fatal("expected error for 1024-bit rsa key")
	}
}

func TestGenerateUnknownAlgorithm(t *testing.T) {
	if _, err := Generate(Algorithm("dsa"), 0, "", ""); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestWriteKeyPair(t *testing.T) {
	dir := t.TempDir()
	kp, err := Generate(AlgoEd25519, 0, "write-test", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	keyPath := filepath.Join(dir, "keys", "id_ed25519")
	if err := WriteKeyPair(kp, keyPath, false); err != nil {
		t.Fatalf("WriteKeyPair failed: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(keyPath)
		if err != nil {
			t.Fatalf("stat private key: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("private key mode = %o, want 0600", perm)
		}
		dirInfo, err := os.Stat(filepath.Join(dir, "keys"))
		if err != nil {
			t.Fatalf("stat key dir: %v", err)
		}
		if perm := dirInfo.Mode().Perm(); perm != 0o700 {
			t.Errorf("key dir mode = %o, want 0700", perm)
		}
	}

	// A second write without overwrite must refuse.
	if err := WriteKeyPair(kp, keyPath, false); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
	if err := WriteKeyPair(kp, keyPath, true); err != nil {
		t.Fatalf("WriteKeyPair with overwrite failed: %v", err)
	}
}

func TestLoadSignerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kp, err := Generate(AlgoEd25519, 0, "load-test", "s3cret")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	keyPath := filepath.Join(dir, "id_ed25519")
	if err := WriteKeyPair(kp, keyPath, false); err != nil {
		t.Fatalf("WriteKeyPair failed: %v", err)
	}

	if _, err := LoadSigner(keyPath, "wrong"); err == nil {
		t.Fatal("expected wrong passphrase to fail")
	}
	signer, err := LoadSigner(keyPath, "s3cret")
	if err != nil {
		t.Fatalf("LoadSigner failed: %v", err)
	}
	if signer.PublicKey().Type() != xssh.KeyAlgoED25519 {
		t.Errorf("unexpected signer key type: %q", signer.PublicKey().Type())
	}
}
