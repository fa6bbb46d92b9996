package positioner

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/rollout"
)

// errNoSigner indicates Linux repo metadata was requested without a signer.
var errNoSigner = errors.New("no signer configured for linux repositories")

// positionDebian adds a deb to the channel's flat APT repository: mirror the
// existing binary tree, preserve the currently-latest deb, drop in the new
// binary, rescan, sign the Release file, upload.
func (g *linuxGenerator) positionDebian(ctx context.Context, req *positionRequest) error {
	dir, cleanup, err := g.workdir("berth-debian-")
	if err != nil {
		return err
	}
	defer cleanup()

	binaryDir := filepath.Join(dir, "binary")
	if err = os.MkdirAll(binaryDir, 0o755); err != nil {
		return fmt.Errorf("create binary directory: %w", err)
	}

	prefix := debianPrefix(req.app, req.channel.ID)
	if err = g.downloadTree(ctx, prefix, binaryDir); err != nil {
		return err
	}

	// An upload for an older version must not evict the newest deb from the
	// regenerated index.
	if err = g.ensureLatestDeb(ctx, req, binaryDir); err != nil {
		return err
	}

	name := packageBinaryName(req.version.Name, req.file.FileName)

	target := filepath.Join(binaryDir, name)
	if _, statErr := os.Stat(target); statErr == nil {
		return fmt.Errorf("%w: %s", release.ErrDuplicateArtifact, name)
	}

	if err = os.WriteFile(target, req.data, rpmFilePermissions); err != nil {
		return fmt.Errorf("write deb %s: %w", name, err)
	}

	if err = g.rebuildDebianMetadata(ctx, dir, binaryDir); err != nil {
		return err
	}

	return g.uploadTree(ctx, binaryDir, prefix)
}

// initDebian publishes an empty, signed APT repository for a new channel.
func (g *linuxGenerator) initDebian(ctx context.Context, app *release.App, channelID string) error {
	dir, cleanup, err := g.workdir("berth-debian-")
	if err != nil {
		return err
	}
	defer cleanup()

	binaryDir := filepath.Join(dir, "binary")
	if err = os.MkdirAll(binaryDir, 0o755); err != nil {
		return fmt.Errorf("create binary directory: %w", err)
	}

	if err = g.rebuildDebianMetadata(ctx, dir, binaryDir); err != nil {
		return err
	}

	return g.uploadTree(ctx, binaryDir, debianPrefix(app, channelID))
}

// ensureLatestDeb re-materializes the newest non-dead version's deb from the
// content index when the mirrored tree is missing it.
func (g *linuxGenerator) ensureLatestDeb(ctx context.Context, req *positionRequest, binaryDir string) error {
	var candidates []*release.Version

	for _, version := range req.channel.Versions {
		if !version.Dead && firstDeb(version) != nil {
			candidates = append(candidates, version)
		}
	}

	latest := rollout.Latest(candidates)
	if latest == nil || latest.Name == req.version.Name {
		return nil
	}

	file := firstDeb(latest)

	target := filepath.Join(binaryDir, packageBinaryName(latest.Name, file.FileName))
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	data, err := g.p.store.Get(ctx, indexKey(req.app, req.channel.ID, latest.Name, file.Platform, file.Arch, file.FileName))
	if err != nil {
		return fmt.Errorf("fetch latest deb from index: %w", err)
	}

	if len(data) == 0 {
		logger.WarnKV(ctx, "Latest deb missing from content index, index will omit it",
			"version", latest.Name, "file", file.FileName)
		return nil
	}

	if err = os.WriteFile(target, data, rpmFilePermissions); err != nil {
		return fmt.Errorf("restore latest deb: %w", err)
	}

	return nil
}

// firstDeb returns the version's first linux deb, or nil.
func firstDeb(version *release.Version) *release.File {
	for _, file := range version.Files {
		if file.Platform == release.PlatformLinux && strings.HasSuffix(file.FileName, ".deb") {
			return file
		}
	}

	return nil
}

// rebuildDebianMetadata regenerates Packages, Sources, Release and both GPG
// signatures in the working tree. Nothing is uploaded here; a failure leaves
// the published repo untouched.
func (g *linuxGenerator) rebuildDebianMetadata(ctx context.Context, dir, binaryDir string) error {
	if g.signer == nil {
		return errNoSigner
	}

	packages, err := g.runner.Run(ctx, dir, "dpkg-scanpackages", "binary", "/dev/null")
	if err != nil {
		return fmt.Errorf("scan packages: %w", err)
	}

	if err = writeWithGzip(filepath.Join(binaryDir, "Packages"), packages); err != nil {
		return err
	}

	sources, err := g.runner.Run(ctx, dir, "dpkg-scansources", "binary", "/dev/null")
	if err != nil {
		return fmt.Errorf("scan sources: %w", err)
	}

	if err = writeWithGzip(filepath.Join(binaryDir, "Sources"), sources); err != nil {
		return err
	}

	releaseControl, err := g.runner.Run(ctx, dir, "apt-ftparchive", "release", "binary")
	if err != nil {
		return fmt.Errorf("generate release file: %w", err)
	}

	releasePath := filepath.Join(binaryDir, "Release")
	if err = os.WriteFile(releasePath, releaseControl, rpmFilePermissions); err != nil {
		return fmt.Errorf("write release file: %w", err)
	}

	if err = g.signer.DetachSign(ctx, releasePath, filepath.Join(binaryDir, "Release.gpg")); err != nil {
		return fmt.Errorf("sign release file: %w", err)
	}

	if err = g.signer.ClearSign(ctx, releasePath, filepath.Join(binaryDir, "InRelease")); err != nil {
		return fmt.Errorf("inline-sign release file: %w", err)
	}

	return nil
}

// writeWithGzip writes data at path and a gzipped copy at path.gz.
func writeWithGzip(path string, data []byte) error {
	if err := os.WriteFile(path, data, rpmFilePermissions); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	var buf bytes.Buffer

	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(path), err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path+".gz", buf.Bytes(), rpmFilePermissions); err != nil {
		return fmt.Errorf("write %s.gz: %w", filepath.Base(path), err)
	}

	return nil
}
