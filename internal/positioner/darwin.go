package positioner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/filestore"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/rollout"
)

// darwinGenerator positions macOS artifacts and maintains the RELEASES.json
// feeds consumed by Squirrel.Mac updater clients.
type darwinGenerator struct {
	p *Positioner
}

// darwinFeed is the RELEASES.json document. Field order is part of the wire
// contract; keep it stable.
type darwinFeed struct {
	CurrentRelease string        `json:"currentRelease"`
	Releases       []darwinEntry `json:"releases"`
}

// darwinEntry is one version's entry in the feed.
type darwinEntry struct {
	Version  string         `json:"version"`
	UpdateTo darwinUpdateTo `json:"updateTo"`
}

// darwinUpdateTo describes the artifact a client at Version should fetch.
type darwinUpdateTo struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	Notes   string `json:"notes"`
	PubDate string `json:"pub_date"`
	URL     string `json:"url"`
}

// Position writes the artifact and, when a zip was newly written, regenerates
// every RELEASES.json variant for the (channel, arch).
func (g *darwinGenerator) Position(ctx context.Context, req *positionRequest) error {
	key := platformFileKey(req.app, req.channel.ID, release.PlatformDarwin, req.file.Arch, req.file.FileName)

	wrote, err := g.p.store.Put(ctx, key, req.data, false)
	if err != nil {
		return fmt.Errorf("position darwin artifact: %w", err)
	}

	if !wrote {
		logger.DebugKV(ctx, "Artifact already positioned, skipping RELEASES.json regeneration", "key", key)
		return nil
	}

	if !strings.HasSuffix(req.file.FileName, ".zip") {
		return nil
	}

	return g.writeFeeds(ctx, req.app, req.channel, req.file.Arch)
}

// writeFeeds regenerates the 101 rollout-scoped RELEASES.json variants plus
// the unscoped default for one (channel, arch).
func (g *darwinGenerator) writeFeeds(ctx context.Context, app *release.App, channel *release.Channel, arch release.Arch) error {
	pubDate := g.p.now().UTC().Format(time.RFC1123)

	writeVariant := func(rolloutPct, threshold int) error {
		feed := g.feed(app, channel, threshold, pubDate)

		data, err := json.Marshal(feed)
		if err != nil {
			return fmt.Errorf("encode RELEASES.json: %w", err)
		}

		key := darwinReleasesKey(app, channel.ID, arch, rolloutPct)
		if _, err = g.p.store.Put(ctx, key, data, true); err != nil {
			return fmt.Errorf("write RELEASES.json variant %s: %w", key, err)
		}

		return nil
	}

	for r := 0; r <= 100; r++ {
		if err := writeVariant(r, r); err != nil {
			return err
		}
	}

	if err := writeVariant(-1, 0); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Regenerated RELEASES.json feeds",
		"channel", channel.ID, "arch", arch)

	return nil
}

// feed renders one RELEASES.json document from the channel's zip artifacts.
// Entries are built from darwin/x64 zips only, one per qualifying version in
// ascending semantic order; the first zip of a version wins.
func (g *darwinGenerator) feed(app *release.App, channel *release.Channel, threshold int, pubDate string) *darwinFeed {
	eligible := rollout.Eligible(channel.Versions, threshold)

	feed := &darwinFeed{Releases: []darwinEntry{}}

	var withZips []*release.Version

	for _, version := range rollout.SortAscending(eligible) {
		zip := firstZip(version)
		if zip == nil {
			continue
		}

		withZips = append(withZips, version)
		feed.Releases = append(feed.Releases, darwinEntry{
			Version: version.Name,
			UpdateTo: darwinUpdateTo{
				Version: version.Name,
				Name:    version.Name,
				Notes:   "",
				PubDate: pubDate,
				URL: filestore.URL(g.p.store,
					platformFileKey(app, channel.ID, release.PlatformDarwin, release.ArchX64, zip.FileName)),
			},
		})
	}

	if latest := rollout.Latest(withZips); latest != nil {
		feed.CurrentRelease = latest.Name
	}

	return feed
}

// firstZip returns the version's first darwin/x64 zip, or nil.
func firstZip(version *release.Version) *release.File {
	for _, file := range version.FilesFor(release.PlatformDarwin, release.ArchX64) {
		if strings.HasSuffix(file.FileName, ".zip") {
			return file
		}
	}

	return nil
}
