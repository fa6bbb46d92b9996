package positioner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/berthd/berth/internal/domain/release"
	"github.com/berthd/berth/internal/filestore"
	"github.com/berthd/berth/internal/logger"
)

// rpmFilePermissions is applied to package binaries written into the working tree.
const rpmFilePermissions = 0o644

// positionRedHat adds an RPM to the channel's YUM repository: mirror the
// existing tree, drop in the new binary, sign everything, re-index, upload.
func (g *linuxGenerator) positionRedHat(ctx context.Context, req *positionRequest) error {
	if g.signer == nil {
		return errNoSigner
	}

	dir, cleanup, err := g.workdir("berth-redhat-")
	if err != nil {
		return err
	}
	defer cleanup()

	prefix := redhatPrefix(req.app, req.channel.ID)
	if err = g.downloadTree(ctx, prefix, dir); err != nil {
		return err
	}

	name := packageBinaryName(req.version.Name, req.file.FileName)

	target := filepath.Join(dir, name)
	if _, statErr := os.Stat(target); statErr == nil {
		logger.DebugKV(ctx, "RPM already in repository, skipping", "package", name)
		return nil
	}

	if err = os.WriteFile(target, req.data, rpmFilePermissions); err != nil {
		return fmt.Errorf("write rpm %s: %w", name, err)
	}

	if err = g.signRPMs(ctx, dir); err != nil {
		return err
	}

	if err = g.runCreateRepo(ctx, dir); err != nil {
		return err
	}

	if err = g.uploadTree(ctx, dir, prefix); err != nil {
		return err
	}

	return g.writeRepoPointer(ctx, req.app, req.channel.ID)
}

// initRedHat publishes an empty, indexed YUM repository for a new channel.
func (g *linuxGenerator) initRedHat(ctx context.Context, app *release.App, channelID string) error {
	if g.signer == nil {
		return errNoSigner
	}

	dir, cleanup, err := g.workdir("berth-redhat-")
	if err != nil {
		return err
	}
	defer cleanup()

	if err = g.runCreateRepo(ctx, dir); err != nil {
		return err
	}

	if err = g.uploadTree(ctx, dir, redhatPrefix(app, channelID)); err != nil {
		return err
	}

	return g.writeRepoPointer(ctx, app, channelID)
}

// signRPMs GPG-signs every RPM in the working tree.
func (g *linuxGenerator) signRPMs(ctx context.Context, dir string) error {
	rpms, err := filepath.Glob(filepath.Join(dir, "*.rpm"))
	if err != nil {
		return fmt.Errorf("collect rpms: %w", err)
	}

	if len(rpms) == 0 {
		return nil
	}

	args := []string{"--addsign"}
	for _, rpm := range rpms {
		args = append(args, filepath.Base(rpm))
	}

	if _, err = g.runner.Run(ctx, dir, "rpm", args...); err != nil {
		return fmt.Errorf("sign rpms: %w", err)
	}

	return nil
}

// runCreateRepo (re-)indexes the working tree, incrementally when repodata
// already exists.
func (g *linuxGenerator) runCreateRepo(ctx context.Context, dir string) error {
	args := []string{"."}
	if _, err := os.Stat(filepath.Join(dir, "repodata")); err == nil {
		args = []string{"--update", "."}
	}

	if _, err := g.runner.Run(ctx, dir, "createrepo", args...); err != nil {
		return fmt.Errorf("index yum repository: %w", err)
	}

	return nil
}

// writeRepoPointer writes the .repo file clients install to subscribe to the
// channel's YUM repository.
func (g *linuxGenerator) writeRepoPointer(ctx context.Context, app *release.App, channelID string) error {
	content := fmt.Sprintf("[%s]\nname=%s\nbaseurl=%s\nenabled=1\ngpgcheck=0\n",
		app.Slug, app.Name, filestore.URL(g.p.store, redhatPrefix(app, channelID)))

	if _, err := g.p.store.Put(ctx, repoPointerKey(app, channelID), []byte(content), true); err != nil {
		return fmt.Errorf("write repo pointer: %w", err)
	}

	return nil
}
