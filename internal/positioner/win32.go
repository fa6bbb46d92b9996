package positioner

import (
	"context"
	"fmt"
	"strings"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/filestore"
	"github.com/berthd/berth/internal/logger"
	"github.com/berthd/berth/internal/rollout"
)

// win32Generator positions Windows artifacts and maintains the Squirrel
// RELEASES indexes consumed by Windows updater clients.
type win32Generator struct {
	p *Positioner
}

// nupkgSuffixes mark the files that appear in RELEASES indexes.
var nupkgSuffixes = []string{"-full.nupkg", "-delta.nupkg"}

// isNupkg reports whether a filename belongs in a RELEASES index.
func isNupkg(fileName string) bool {
	for _, suffix := range nupkgSuffixes {
		if strings.HasSuffix(fileName, suffix) {
			return true
		}
	}

	return false
}

// Position writes the artifact and, when a nupkg was newly written,
// regenerates every RELEASES variant for the (channel, arch).
func (g *win32Generator) Position(ctx context.Context, req *positionRequest) error {
	key := platformFileKey(req.app, req.channel.ID, release.PlatformWin32, req.file.Arch, req.file.FileName)

	wrote, err := g.p.store.Put(ctx, key, req.data, false)
	if err != nil {
		return fmt.Errorf("position win32 artifact: %w", err)
	}

	if !wrote {
		logger.DebugKV(ctx, "Artifact already positioned, skipping RELEASES regeneration", "key", key)
		return nil
	}

	if !isNupkg(req.file.FileName) {
		return nil
	}

	return g.writeReleases(ctx, req.app, req.channel, req.file.Arch)
}

// writeReleases regenerates the 101 rollout-scoped RELEASES variants plus the
// unscoped default for one (channel, arch).
func (g *win32Generator) writeReleases(ctx context.Context, app *release.App, channel *release.Channel, arch release.Arch) error {
	// Byte sizes are stable across variants; look each file up once.
	sizes := make(map[string]int64)

	writeVariant := func(rolloutPct, threshold int) error {
		index, err := g.releasesIndex(ctx, app, channel, arch, threshold, sizes)
		if err != nil {
			return err
		}

		key := win32ReleasesKey(app, channel.ID, arch, rolloutPct)
		if _, err = g.p.store.Put(ctx, key, []byte(index), true); err != nil {
			return fmt.Errorf("write RELEASES variant %s: %w", key, err)
		}

		return nil
	}

	for r := 0; r <= 100; r++ {
		if err := writeVariant(r, r); err != nil {
			return err
		}
	}

	// The unscoped default ignores rollout entirely.
	if err := writeVariant(-1, 0); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Regenerated RELEASES indexes",
		"channel", channel.ID, "arch", arch)

	return nil
}

// releasesIndex renders one RELEASES document: one line per nupkg of every
// eligible version, ascending by semantic version, formatted
// `<SHA1 uppercase hex> <absolute url> <byte size>` and LF-joined.
func (g *win32Generator) releasesIndex(ctx context.Context, app *release.App, channel *release.Channel, arch release.Arch, threshold int, sizes map[string]int64) (string, error) {
	var lines []string

	for _, version := range rollout.SortAscending(rollout.Eligible(channel.Versions, threshold)) {
		for _, file := range version.FilesFor(release.PlatformWin32, arch) {
			if !isNupkg(file.FileName) {
				continue
			}

			key := platformFileKey(app, channel.ID, release.PlatformWin32, arch, file.FileName)

			size, ok := sizes[key]
			if !ok {
				var err error

				size, err = g.p.store.Size(ctx, key)
				if err != nil {
					return "", fmt.Errorf("size of %s: %w", key, err)
				}

				sizes[key] = size
			}

			lines = append(lines, fmt.Sprintf("%s %s %d",
				strings.ToUpper(file.SHA1), filestore.URL(g.p.store, key), size))
		}
	}

	return strings.Join(lines, "\n"), nil
}
