// Package secrets resolves named API credentials. The chain is
// environment variable, then the desktop keyring via secret-tool(1),
// then a per-key file under the config directory. Resolved secrets stay
// in-process; they are never exported into child environments.
package secrets

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"voxctl/internal/domain"
)

// Resolver implements ports.SecretSource.
type Resolver struct {
	// CredentialDir holds one file per key name for the file fallback.
	CredentialDir string
	// KeyringCommand is the secret-tool binary; empty disables the
	// keyring step.
	KeyringCommand string
}

func NewResolver(credentialDir string) *Resolver {
	return &Resolver{
		CredentialDir:  credentialDir,
		KeyringCommand: "secret-tool",
	}
}

// Lookup resolves name to a secret string or domain.ErrSecretNotFound.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty key name", domain.ErrSecretNotFound)
	}

	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value, nil
	}

	if value := r.fromKeyring(ctx, name); value != "" {
		return value, nil
	}

	if value := r.fromFile(name); value != "" {
		return value, nil
	}

	return "", fmt.Errorf("%w: %s", domain.ErrSecretNotFound, name)
}

func (r *Resolver) fromKeyring(ctx context.Context, name string) string {
	if r.KeyringCommand == "" {
		return ""
	}
	out, err := exec.CommandContext(ctx, r.KeyringCommand, "lookup", "service", "voxctl", "key", name).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (r *Resolver) fromFile(name string) string {
	if r.CredentialDir == "" {
		return ""
	}
	raw, err := os.ReadFile(filepath.Join(r.CredentialDir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
