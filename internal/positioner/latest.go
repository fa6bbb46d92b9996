package positioner

import (
	"context"
	"fmt"
	"path"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/rollout"
)

// latestPairs are the (platform, arch) pairs latest pointers are kept for.
var latestPairs = []struct {
	platform release.Platform
	arch     release.Arch
}{
	{release.PlatformWin32, release.ArchIA32},
	{release.PlatformWin32, release.ArchX64},
	{release.PlatformDarwin, release.ArchIA32},
	{release.PlatformDarwin, release.ArchX64},
	{release.PlatformLinux, release.ArchIA32},
	{release.PlatformLinux, release.ArchX64},
}

// updateLatestInstallers re-evaluates the canonical latest installer for
// every (platform, arch) pair of the channel. Only versions at full rollout
// qualify. The copy is gated by a companion .ref key holding the version last
// copied: when the ref already names the winning version, both the copy and
// the ref write are skipped.
func (p *Positioner) updateLatestInstallers(ctx context.Context, app *release.App, channel *release.Channel) error {
	candidates := rollout.FullyRolledOut(channel.Versions)

	for _, pair := range latestPairs {
		winner, file := latestInstaller(candidates, pair.platform, pair.arch)
		if winner == nil {
			continue
		}

		ext := path.Ext(file.FileName)

		destKey := latestKey(app, channel.ID, pair.platform, pair.arch, app.Name+ext)
		refKey := destKey + ".ref"

		ref, err := p.store.Get(ctx, refKey)
		if err != nil {
			return fmt.Errorf("read latest ref %s: %w", refKey, err)
		}

		if string(ref) == winner.Name {
			continue
		}

		source := indexKey(app, channel.ID, winner.Name, pair.platform, pair.arch, file.FileName)

		data, err := p.store.Get(ctx, source)
		if err != nil {
			return fmt.Errorf("read indexed artifact %s: %w", source, err)
		}

		if len(data) == 0 {
			logger.WarnKV(ctx, "Winning installer missing from content index, keeping previous latest",
				"version", winner.Name, "file", file.FileName)
			continue
		}

		if _, err = p.store.Put(ctx, destKey, data, true); err != nil {
			return fmt.Errorf("copy latest installer %s: %w", destKey, err)
		}

		if _, err = p.store.Put(ctx, refKey, []byte(winner.Name), true); err != nil {
			return fmt.Errorf("write latest ref %s: %w", refKey, err)
		}

		logger.InfoKV(ctx, "Updated latest installer",
			"channel", channel.ID, "platform", pair.platform, "arch", pair.arch, "version", winner.Name)
	}

	return nil
}

// latestInstaller picks the greatest version among candidates that carries an
// installer for the pair, returning the version and its installer file.
func latestInstaller(candidates []*release.Version, platform release.Platform, arch release.Arch) (*release.Version, *release.File) {
	var qualifying []*release.Version

	for _, version := range candidates {
		if installerFor(version, platform, arch) != nil {
			qualifying = append(qualifying, version)
		}
	}

	winner := rollout.Latest(qualifying)
	if winner == nil {
		return nil, nil
	}

	return winner, installerFor(winner, platform, arch)
}

// installerFor returns the version's installer file for the pair, or nil.
func installerFor(version *release.Version, platform release.Platform, arch release.Arch) *release.File {
	for _, file := range version.FilesFor(platform, arch) {
		if file.Type == release.TypeInstaller {
			return file
		}
	}

	return nil
}
