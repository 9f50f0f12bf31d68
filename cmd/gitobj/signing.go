package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/gitobj/pkg/repository"
	"golang.org/x/crypto/ssh"
)

// sshSignaturePrefix tags the armored signatures produced by sshSigner.
const sshSignaturePrefix = "sshsig-v1"

// defaultSigningKeys are tried in order when no key path is given.
var defaultSigningKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// sshSigner loads an unencrypted SSH private key and returns a commit signer
// over it, plus the path the key was read from.
func sshSigner(keyPath string) (repository.CommitSigner, string, error) {
	path, err := signingKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", path, err)
	}
	key, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", path, err)
	}
	pub := base64.StdEncoding.EncodeToString(key.PublicKey().Marshal())

	return func(payload []byte) (string, error) {
		sig, err := key.Sign(rand.Reader, payload)
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}
		blob := base64.StdEncoding.EncodeToString(sig.Blob)
		return strings.Join([]string{sshSignaturePrefix, sig.Format, pub, blob}, ":"), nil
	}, path, nil
}

// verifySSHSignature checks an armored signature produced by sshSigner
// against payload.
func verifySSHSignature(armor string, payload []byte) (ssh.PublicKey, error) {
	parts := strings.Split(armor, ":")
	if len(parts) != 4 || parts[0] != sshSignaturePrefix {
		return nil, fmt.Errorf("not an %s signature", sshSignaturePrefix)
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if err := pub.Verify(payload, &ssh.Signature{Format: parts[1], Blob: blob}); err != nil {
		return nil, err
	}
	return pub, nil
}

func signingKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	home, homeErr := os.UserHomeDir()
	if path != "" {
		if strings.HasPrefix(path, "~/") {
			if homeErr != nil {
				return "", fmt.Errorf("resolve home dir: %w", homeErr)
			}
			path = filepath.Join(home, path[2:])
		}
		return filepath.Abs(path)
	}
	if homeErr != nil {
		return "", fmt.Errorf("resolve home dir: %w", homeErr)
	}
	for _, name := range defaultSigningKeys {
		candidate := filepath.Join(home, ".ssh", name)
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (tried %s)", strings.Join(defaultSigningKeys, ", "))
}
