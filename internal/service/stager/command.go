package stager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/service/common"
)

// Options contains inputs for the staging entry points.
type Options struct {
	// ConfigPath is the path to the engine settings YAML.
	ConfigPath string
	// ManifestPath is the path to the application manifest YAML.
	ManifestPath string
	// RecordPath is where the staged-upload record lives. Save writes it,
	// Fetch and Discard read it. The record holds the cipher password, so
	// treat it like a credential.
	RecordPath string
	// VersionName, Platform and Arch describe the staged build on Save.
	VersionName string
	Platform    string
	Arch        string
	// FilePath is the artifact to stage on Save, or the output path on Fetch.
	FilePath string
	// FileName overrides the staged name; defaults to the FilePath base.
	FileName string
}

// Save encrypts the artifact into the staging area and writes the staged
// record. No lock is taken; staged keys are quarantined per session.
func Save(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "berth-stage")

	runtime, err := common.NewRuntime(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer runtime.Close()

	app, err := common.LoadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(opts.FilePath))
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	staged := release.NewStagedUpload(opts.VersionName,
		release.Platform(opts.Platform), release.Arch(opts.Arch))

	name := opts.FileName
	if name == "" {
		name = filepath.Base(opts.FilePath)
	}

	if err = runtime.Engine.SaveStagedFile(ctx, app, staged, name, data); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}

	staged.Filenames = append(staged.Filenames, name)

	if err = saveRecord(opts.RecordPath, staged); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Artifact staged", "app", app.Slug, "session", staged.SaveString, "file", name)

	return runtime.Flush(ctx)
}

// Fetch decrypts a staged artifact back to disk.
func Fetch(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "berth-stage")

	runtime, err := common.NewRuntime(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer runtime.Close()

	app, err := common.LoadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	staged, err := loadRecord(opts.RecordPath)
	if err != nil {
		return err
	}

	name := opts.FileName
	if name == "" {
		name = filepath.Base(opts.FilePath)
	}

	data, err := runtime.Engine.GetStagedFile(ctx, app, staged, name)
	if err != nil {
		return fmt.Errorf("fetch staged %s: %w", name, err)
	}

	if err = os.WriteFile(filepath.Clean(opts.FilePath), data, 0o600); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	return nil
}

// Discard removes every staged key of the record's session and deletes the
// record file.
func Discard(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "berth-stage")

	runtime, err := common.NewRuntime(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer runtime.Close()

	app, err := common.LoadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	staged, err := loadRecord(opts.RecordPath)
	if err != nil {
		return err
	}

	if err = runtime.Engine.CleanupStaged(ctx, app, staged.SaveString); err != nil {
		return fmt.Errorf("discard staged session %s: %w", staged.SaveString, err)
	}

	if err = os.Remove(filepath.Clean(opts.RecordPath)); err != nil {
		return fmt.Errorf("remove staged record: %w", err)
	}

	return runtime.Flush(ctx)
}

// saveRecord persists the staged record with credential-tight permissions.
func saveRecord(path string, staged *release.StagedUpload) error {
	data, err := yaml.Marshal(staged)
	if err != nil {
		return fmt.Errorf("marshal staged record: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("write staged record: %w", err)
	}

	return nil
}

// loadRecord reads a staged record written by Save.
func loadRecord(path string) (*release.StagedUpload, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read staged record: %w", err)
	}

	var staged release.StagedUpload
	if err = yaml.Unmarshal(contents, &staged); err != nil {
		return nil, fmt.Errorf("unmarshal staged record: %w", err)
	}

	return &staged, nil
}
