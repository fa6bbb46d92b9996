package positioner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berthd/berth/internal/checksum"
	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/filestore"
	"github.com/berthd/berth/internal/lock"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/signing"
)

// HashRecorder is the consumed capability for persisting an artifact's hash
// pair into the external metadata store once computed.
type HashRecorder interface {
	StoreSHAs(ctx context.Context, file *release.File, sha1Hex, sha256Hex string) error
}

// Options configures a Positioner.
type Options struct {
	// Store is the file store all placement happens in.
	Store filestore.FileStore
	// Locks serializes mutations per application.
	Locks *lock.Manager
	// Signer signs Linux repository metadata and packages. Required for
	// Linux positioning, unused otherwise.
	Signer signing.Signer
	// Recorder receives computed hash pairs; may be nil.
	Recorder HashRecorder
	// ScratchDir is where Linux repo working directories are created.
	// Empty means the system temp directory.
	ScratchDir string
	// Runner invokes external packaging tools; defaults to os/exec.
	Runner ToolRunner
	// Now supplies timestamps for generated feeds; defaults to time.Now.
	Now func() time.Time
}

// Positioner routes uploaded artifacts to their platform-specific storage
// locations, regenerates update-feed manifests and maintains the latest
// pointers. Every mutating method re-verifies the caller's lock token at
// entry and degrades to a silent no-op when the token is no longer live.
type Positioner struct {
	store      filestore.FileStore
	locks      *lock.Manager
	recorder   HashRecorder
	generators map[release.Platform]platformGenerator
	now        func() time.Time
}

// Upload describes one uploaded artifact to position.
type Upload struct {
	// Token is the caller's live lock token for the application.
	Token string
	// App owns the channel being mutated.
	App *release.App
	// ChannelID selects the channel within the app.
	ChannelID string
	// Version is the owning version; its Files already include File.
	Version *release.Version
	// File is the artifact's metadata.
	File *release.File
	// Data is the artifact bytes.
	Data []byte
	// SkipIndex disables the append-only content index write.
	SkipIndex bool
}

// positionRequest is an Upload with its channel resolved, handed to the
// platform generators.
type positionRequest struct {
	app     *release.App
	channel *release.Channel
	version *release.Version
	file    *release.File
	data    []byte
}

// platformGenerator is the per-platform positioning capability. Exactly one
// implementation exists per recognized platform.
type platformGenerator interface {
	Position(ctx context.Context, req *positionRequest) error
}

// errUnknownChannel indicates an upload referencing a channel the app does not own.
var errUnknownChannel = errors.New("unknown channel")

// New creates a Positioner from options.
func New(opts *Options) *Positioner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runner := opts.Runner
	if runner == nil {
		runner = newExecRunner(opts.Signer)
	}

	p := &Positioner{
		store:    opts.Store,
		locks:    opts.Locks,
		recorder: opts.Recorder,
		now:      now,
	}

	linux := &linuxGenerator{
		p:          p,
		signer:     opts.Signer,
		runner:     runner,
		scratchDir: opts.ScratchDir,
	}

	p.generators = map[release.Platform]platformGenerator{
		release.PlatformWin32:  &win32Generator{p: p},
		release.PlatformDarwin: &darwinGenerator{p: p},
		release.PlatformLinux:  linux,
	}

	return p
}

// holdsLock reports whether the caller still owns the application's lock,
// logging a debug entry when it does not.
func (p *Positioner) holdsLock(ctx context.Context, app *release.App, token string) (bool, error) {
	held, err := p.locks.Holds(ctx, app, token)
	if err != nil {
		return false, err
	}

	if !held {
		logger.DebugKV(ctx, "Lock token no longer live, skipping", "app", app.Slug)
	}

	return held, nil
}

// HandleUpload validates, indexes and positions one uploaded artifact, then
// re-evaluates the channel's latest pointers.
func (p *Positioner) HandleUpload(ctx context.Context, up *Upload) error {
	ctx = logger.WithKV(ctx, "app", up.App.Slug)

	held, err := p.holdsLock(ctx, up.App, up.Token)
	if err != nil || !held {
		return err
	}

	// Client-input anomalies are dropped without error.
	if !release.ValidPlatform(up.File.Platform) || !release.ValidArch(up.File.Arch) {
		logger.DebugKV(ctx, "Unrecognized platform or arch, dropping upload",
			"platform", up.File.Platform, "arch", up.File.Arch, "file", up.File.FileName)
		return nil
	}

	channel := up.App.Channel(up.ChannelID)
	if channel == nil {
		return fmt.Errorf("%w: %s", errUnknownChannel, up.ChannelID)
	}

	if err = up.Version.CheckNewFile(up.File); err != nil {
		return err
	}

	if err = p.recordDigests(ctx, up.File, up.Data); err != nil {
		return err
	}

	if !up.SkipIndex {
		key := indexKey(up.App, up.ChannelID, up.Version.Name, up.File.Platform, up.File.Arch, up.File.FileName)
		if _, err = p.store.Put(ctx, key, up.Data, false); err != nil {
			return fmt.Errorf("index artifact: %w", err)
		}
	}

	req := &positionRequest{
		app:     up.App,
		channel: channel,
		version: up.Version,
		file:    up.File,
		data:    up.Data,
	}

	if err = p.generators[up.File.Platform].Position(ctx, req); err != nil {
		return err
	}

	return p.updateLatestInstallers(ctx, up.App, channel)
}

// recordDigests fills in the file's hash pair on first sight and hands it to
// the recorder when one is configured.
func (p *Positioner) recordDigests(ctx context.Context, file *release.File, data []byte) error {
	if file.SHA1 != "" && file.SHA256 != "" {
		return nil
	}

	digests := checksum.Compute(data)
	file.SHA1 = digests.SHA1
	file.SHA256 = digests.SHA256

	if p.recorder == nil {
		return nil
	}

	if err := p.recorder.StoreSHAs(ctx, file, digests.SHA1, digests.SHA256); err != nil {
		return fmt.Errorf("record artifact hashes: %w", err)
	}

	return nil
}

// PotentiallyUpdateLatestInstallers re-evaluates the channel's latest
// pointers under the caller's lock token. It is idempotent and cheap to call
// after every upload.
func (p *Positioner) PotentiallyUpdateLatestInstallers(ctx context.Context, token string, app *release.App, channelID string) error {
	held, err := p.holdsLock(ctx, app, token)
	if err != nil || !held {
		return err
	}

	channel := app.Channel(channelID)
	if channel == nil {
		return fmt.Errorf("%w: %s", errUnknownChannel, channelID)
	}

	return p.updateLatestInstallers(ctx, app, channel)
}

// InitLinuxRepos creates empty YUM and APT repositories for a channel. It is
// invoked once when a channel is created.
func (p *Positioner) InitLinuxRepos(ctx context.Context, token string, app *release.App, channelID string) error {
	held, err := p.holdsLock(ctx, app, token)
	if err != nil || !held {
		return err
	}

	linux, _ := p.generators[release.PlatformLinux].(*linuxGenerator)

	if err = linux.initRedHat(ctx, app, channelID); err != nil {
		return err
	}

	return linux.initDebian(ctx, app, channelID)
}

// PositionIcon writes the application's icons. Formats with no data are skipped.
func (p *Positioner) PositionIcon(ctx context.Context, token string, app *release.App, pngData, icoData []byte) error {
	held, err := p.holdsLock(ctx, app, token)
	if err != nil || !held {
		return err
	}

	for ext, data := range map[string][]byte{"png": pngData, "ico": icoData} {
		if len(data) == 0 {
			continue
		}

		if _, err = p.store.Put(ctx, iconKey(app, ext), data, true); err != nil {
			return fmt.Errorf("position icon.%s: %w", ext, err)
		}
	}

	return nil
}
