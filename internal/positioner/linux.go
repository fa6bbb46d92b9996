package positioner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/signing"
)

// ToolRunner invokes an external packaging tool in a working directory and
// returns its standard output.
type ToolRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// toolTimeout bounds every external tool invocation.
const toolTimeout = 5 * time.Minute

// execRunner runs tools through os/exec, exporting the signer's keyring so
// rpm can reach the imported key.
type execRunner struct {
	// env is the environment for every invocation.
	env []string
}

// newExecRunner builds the default runner for a signer.
func newExecRunner(signer signing.Signer) *execRunner {
	env := os.Environ()
	if gpg, ok := signer.(*signing.GPG); ok {
		env = append(env, "GNUPGHOME="+gpg.Home())
	}

	return &execRunner{env: env}
}

// Run executes the tool, capturing stdout; stderr is folded into the error.
func (r *execRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = r.env

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %v: %w: %s", name, args, err, stderr.String())
	}

	return output, nil
}

// linuxGenerator positions Linux packages by synchronizing YUM and APT
// repositories through a local working directory: download the current repo
// contents, add the new package, rebuild and sign the metadata, re-upload.
// Store writes happen only after local regeneration succeeds, so a failed
// tool invocation leaves the published repo at its previous consistent state.
type linuxGenerator struct {
	p          *Positioner
	signer     signing.Signer
	runner     ToolRunner
	scratchDir string
}

// Position dispatches by package format.
func (g *linuxGenerator) Position(ctx context.Context, req *positionRequest) error {
	switch {
	case strings.HasSuffix(req.file.FileName, ".rpm"):
		return g.positionRedHat(ctx, req)
	case strings.HasSuffix(req.file.FileName, ".deb"):
		return g.positionDebian(ctx, req)
	default:
		logger.DebugKV(ctx, "Unsupported linux package format, dropping upload", "file", req.file.FileName)
		return nil
	}
}

// workdir creates a scratch directory for one repo synchronization.
func (g *linuxGenerator) workdir(pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp(g.scratchDir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create working directory: %w", err)
	}

	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// downloadTree mirrors every key under prefix into dir.
func (g *linuxGenerator) downloadTree(ctx context.Context, prefix, dir string) error {
	keys, err := g.p.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", prefix, err)
	}

	for _, key := range keys {
		rel := strings.TrimPrefix(key, strings.TrimSuffix(prefix, "/")+"/")

		data, err := g.p.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("download %s: %w", key, err)
		}

		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("mirror %s: %w", key, err)
		}

		if err = os.WriteFile(target, data, 0o644); err != nil {
			return fmt.Errorf("mirror %s: %w", key, err)
		}
	}

	return nil
}

// uploadTree pushes every file under dir to the store under prefix,
// overwriting previous contents.
func (g *linuxGenerator) uploadTree(ctx context.Context, dir, prefix string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}

		key := strings.TrimSuffix(prefix, "/") + "/" + filepath.ToSlash(rel)
		if _, err = g.p.store.Put(ctx, key, data, true); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}

		return nil
	})
}

// packageBinaryName is the positioned name of a Linux package in the repo
// tree: `{version}-{fileName}`.
func packageBinaryName(versionName, fileName string) string {
	return versionName + "-" + fileName
}
