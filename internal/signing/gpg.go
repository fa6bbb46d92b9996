// Package signing wraps the external gpg tool behind a narrow interface.
// Key management is external: the engine receives a private key blob,
// imports it into a throwaway keyring and signs with it. Any import or sign
// failure is fatal for the operation that needed the signature.
package signing

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Signer produces detached and inline GPG signatures over files.
type Signer interface {
	// DetachSign writes a binary detached signature of inPath to outPath.
	DetachSign(ctx context.Context, inPath, outPath string) error
	// ClearSign writes an inline cleartext signature of inPath to outPath.
	ClearSign(ctx context.Context, inPath, outPath string) error
}

// GPG signs through the gpg binary with an isolated keyring directory.
type GPG struct {
	// home is the throwaway GNUPGHOME the key was imported into.
	home string
}

// commandTimeout bounds every gpg invocation.
const commandTimeout = 2 * time.Minute

// keyringDirPermissions is required by gpg for its home directory.
const keyringDirPermissions = 0o700

// NewGPG creates an isolated keyring and imports the private key blob into it.
func NewGPG(ctx context.Context, privateKey []byte) (*GPG, error) {
	home, err := os.MkdirTemp("", "berth-gpg-")
	if err != nil {
		return nil, fmt.Errorf("create keyring directory: %w", err)
	}

	if err = os.Chmod(home, keyringDirPermissions); err != nil {
		_ = os.RemoveAll(home)
		return nil, fmt.Errorf("restrict keyring directory: %w", err)
	}

	keyPath := filepath.Join(home, "private.asc")
	if err = os.WriteFile(keyPath, privateKey, 0o600); err != nil {
		_ = os.RemoveAll(home)
		return nil, fmt.Errorf("write private key: %w", err)
	}

	g := &GPG{home: home}
	if err = g.run(ctx, "--import", keyPath); err != nil {
		_ = os.RemoveAll(home)
		return nil, fmt.Errorf("import private key: %w", err)
	}

	// The key blob is only needed for the import.
	_ = os.Remove(keyPath)

	return g, nil
}

// Home returns the keyring directory, for tools (rpm) that sign via gpg.
func (g *GPG) Home() string {
	return g.home
}

// Close removes the throwaway keyring.
func (g *GPG) Close() error {
	return os.RemoveAll(g.home)
}

// DetachSign writes a binary detached signature (Release.gpg style).
func (g *GPG) DetachSign(ctx context.Context, inPath, outPath string) error {
	return g.run(ctx, "--armor", "--detach-sign", "--output", outPath, inPath)
}

// ClearSign writes an inline cleartext signature (InRelease style).
func (g *GPG) ClearSign(ctx context.Context, inPath, outPath string) error {
	return g.run(ctx, "--clearsign", "--output", outPath, inPath)
}

// run invokes gpg with batch-safe flags against the isolated keyring.
func (g *GPG) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	full := append([]string{"--batch", "--yes", "--no-tty"}, args...)

	cmd := exec.CommandContext(ctx, "gpg", full...)
	cmd.Env = append(os.Environ(), "GNUPGHOME="+g.home)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("gpg %v: %w: %s", args, err, output)
	}

	return nil
}
