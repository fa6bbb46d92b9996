package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/positioner"
	"github.com/berthd/berth/internal/service/common"
)

// Options contains inputs for the upload entry point.
type Options struct {
	// ConfigPath is the path to the engine settings YAML.
	ConfigPath string
	// ManifestPath is the path to the application manifest YAML.
	ManifestPath string
	// ChannelID selects the release track within the app.
	ChannelID string
	// VersionName is the semantic version the artifact belongs to.
	VersionName string
	// FilePath is the local path of the artifact to position.
	FilePath string
	// Platform the artifact targets (win32, darwin, linux).
	Platform string
	// Arch the artifact targets (ia32, x64).
	Arch string
	// Update marks the artifact as an update archive instead of an installer.
	Update bool
	// SkipIndex disables the append-only content index write.
	SkipIndex bool
}

var (
	// errLockBusy indicates another publisher currently holds the app's lock.
	errLockBusy = errors.New("application is locked by another publisher, retry later")
	// errUnknownVersion indicates the manifest has no such version on the channel.
	errUnknownVersion = errors.New("unknown version")
)

// Run positions one artifact: it loads the manifest and the artifact bytes,
// takes the application lock, routes the artifact through the engine and
// writes the updated manifest back.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "berth-upload")

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

	file, version, err := resolveFile(app, opts)
	if err != nil {
		return err
	}

	acquired, err := runtime.Locks.WithLock(ctx, app, func(token string) error {
		return runtime.Engine.HandleUpload(ctx, &positioner.Upload{
			Token:     token,
			App:       app,
			ChannelID: opts.ChannelID,
			Version:   version,
			File:      file,
			Data:      data,
			SkipIndex: opts.SkipIndex,
		})
	})
	if err != nil {
		return fmt.Errorf("position %s: %w", file.FileName, err)
	}

	if !acquired {
		return errLockBusy
	}

	if err = common.SaveManifest(opts.ManifestPath, app); err != nil {
		return err
	}

	if err = runtime.Flush(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Artifact positioned",
		"app", app.Slug, "channel", opts.ChannelID, "version", version.Name, "file", file.FileName)

	return nil
}

// resolveFile locates or registers the artifact's file record on the manifest.
func resolveFile(app *release.App, opts *Options) (*release.File, *release.Version, error) {
	channel := app.Channel(opts.ChannelID)
	if channel == nil {
		return nil, nil, fmt.Errorf("unknown channel %q on app %s", opts.ChannelID, app.Slug)
	}

	version := channel.Version(opts.VersionName)
	if version == nil {
		return nil, nil, fmt.Errorf("%w: %s on channel %s", errUnknownVersion, opts.VersionName, opts.ChannelID)
	}

	fileName := filepath.Base(opts.FilePath)
	fileType := release.TypeInstaller

	// nupkg archives are always update payloads.
	if opts.Update || strings.HasSuffix(fileName, ".nupkg") {
		fileType = release.TypeUpdate
	}

	for _, existing := range version.Files {
		if existing.FileName == fileName {
			return existing, version, nil
		}
	}

	file := &release.File{
		FileName: fileName,
		Platform: release.Platform(opts.Platform),
		Arch:     release.Arch(opts.Arch),
		Type:     fileType,
	}
	version.Files = append(version.Files, file)

	return file, version, nil
}
