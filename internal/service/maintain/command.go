package maintain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/service/common"
)

// Options contains inputs for the maintenance entry points.
type Options struct {
	// ConfigPath is the path to the engine settings YAML.
	ConfigPath string
	// ManifestPath is the path to the application manifest YAML.
	ManifestPath string
	// ChannelID selects the release track for channel-scoped maintenance.
	ChannelID string
	// PNGPath and ICOPath are local icon files for PositionIcon. Either may
	// be empty.
	PNGPath string
	ICOPath string
}

// errLockBusy indicates another publisher currently holds the app's lock.
var errLockBusy = errors.New("application is locked by another publisher, retry later")

// InitRepos publishes empty, signed Linux repositories for a channel. Run it
// once when the channel is created.
func InitRepos(ctx context.Context, opts *Options) error {
	return withApp(ctx, "berth-init-repos", opts, func(ctx context.Context, run *runCtx) error {
		return run.runtime.Engine.InitLinuxRepos(ctx, run.token, run.app, opts.ChannelID)
	})
}

// RefreshLatest re-evaluates the channel's latest-installer pointers, picking
// up rollout changes made in the manifest since the last upload.
func RefreshLatest(ctx context.Context, opts *Options) error {
	return withApp(ctx, "berth-refresh-latest", opts, func(ctx context.Context, run *runCtx) error {
		return run.runtime.Engine.PotentiallyUpdateLatestInstallers(ctx, run.token, run.app, opts.ChannelID)
	})
}

// PositionIcon uploads the application's icons.
func PositionIcon(ctx context.Context, opts *Options) error {
	png, err := readOptional(opts.PNGPath)
	if err != nil {
		return err
	}

	ico, err := readOptional(opts.ICOPath)
	if err != nil {
		return err
	}

	return withApp(ctx, "berth-icon", opts, func(ctx context.Context, run *runCtx) error {
		return run.runtime.Engine.PositionIcon(ctx, run.token, run.app, png, ico)
	})
}

// LockStatus returns the token currently holding the application's lock, or
// an empty string when the lock is free.
func LockStatus(ctx context.Context, opts *Options) (string, error) {
	ctx = logger.WithName(ctx, "berth-lock")

	runtime, err := common.NewRuntime(ctx, opts.ConfigPath)
	if err != nil {
		return "", err
	}
	defer runtime.Close()

	app, err := common.LoadManifest(opts.ManifestPath)
	if err != nil {
		return "", err
	}

	return runtime.Locks.Current(ctx, app)
}

// LockClear force-releases the application's lock regardless of holder. Use
// only to recover from a crashed publisher; a live one will fail mid-flight.
func LockClear(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "berth-lock")

	runtime, err := common.NewRuntime(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer runtime.Close()

	app, err := common.LoadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	current, err := runtime.Locks.Current(ctx, app)
	if err != nil {
		return err
	}

	if current == "" {
		logger.InfoKV(ctx, "Lock already free", "app", app.Slug)
		return nil
	}

	if err = runtime.Locks.Release(ctx, app, current); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Lock cleared", "app", app.Slug)

	return nil
}

// runCtx hands the bootstrapped pieces to a maintenance action.
type runCtx struct {
	runtime *common.Runtime
	app     *release.App
	token   string
}

// withApp bootstraps the runtime, loads the manifest and runs the action
// under the application's lock, flushing invalidations afterwards.
func withApp(ctx context.Context, name string, opts *Options, action func(context.Context, *runCtx) error) error {
	ctx = logger.WithName(ctx, name)

	runtime, err := common.NewRuntime(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}
	defer runtime.Close()

	app, err := common.LoadManifest(opts.ManifestPath)
	if err != nil {
		return err
	}

	acquired, err := runtime.Locks.WithLock(ctx, app, func(token string) error {
		return action(ctx, &runCtx{runtime: runtime, app: app, token: token})
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if !acquired {
		return errLockBusy
	}

	return runtime.Flush(ctx)
}

// readOptional reads a file, treating an empty path as no data.
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return data, nil
}
