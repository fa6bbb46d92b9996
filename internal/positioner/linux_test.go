package positioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berthd/berth/internal/domain/release"
)

// fakeSigner writes marker signatures instead of invoking gpg.
type fakeSigner struct {
	// fail makes every signing call error.
	fail bool
}

func (s *fakeSigner) DetachSign(_ context.Context, _, outPath string) error {
	if s.fail {
		return errors.New("gpg unavailable")
	}

	return os.WriteFile(outPath, []byte("detached signature"), 0o644)
}

func (s *fakeSigner) ClearSign(_ context.Context, inPath, outPath string) error {
	if s.fail {
		return errors.New("gpg unavailable")
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	return os.WriteFile(outPath, append([]byte("-----SIGNED-----\n"), data...), 0o644)
}

// fakeRunner emulates the external packaging tools well enough to observe
// the generator's working-tree protocol.
type fakeRunner struct {
	// failTool makes invocations of that tool error.
	failTool string
	// calls records invoked tool names in order.
	calls []string
}

func (r *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, name)

	if name == r.failTool {
		return nil, fmt.Errorf("%s exploded", name)
	}

	switch name {
	case "dpkg-scanpackages":
		return scanListing(filepath.Join(dir, "binary"), ".deb")
	case "dpkg-scansources":
		return nil, nil
	case "apt-ftparchive":
		return []byte("Origin: editor\nArchitectures: amd64 i386\n"), nil
	case "createrepo":
		repodata := filepath.Join(dir, "repodata")
		if err := os.MkdirAll(repodata, 0o755); err != nil {
			return nil, err
		}

		listing, err := scanListing(dir, ".rpm")
		if err != nil {
			return nil, err
		}

		return nil, os.WriteFile(filepath.Join(repodata, "repomd.xml"), listing, 0o644)
	case "rpm":
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected tool %s", name)
	}
}

// scanListing renders one "Package:" stanza per matching file in dir.
func scanListing(dir, suffix string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	var builder strings.Builder
	for _, name := range names {
		fmt.Fprintf(&builder, "Package: %s\n\n", name)
	}

	return []byte(builder.String()), nil
}

// TestDebianPosition verifies the full APT synchronization: binary placement,
// regenerated metadata and signatures.
func TestDebianPosition(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})

	err := e.upload(t, "1.0.0",
		&release.File{FileName: "editor.deb", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("deb bytes"), false)
	require.NoError(t, err)

	prefix := "editor/stable/linux/debian/binary"
	require.ElementsMatch(t, []string{
		prefix + "/1.0.0-editor.deb",
		prefix + "/Packages",
		prefix + "/Packages.gz",
		prefix + "/Sources",
		prefix + "/Sources.gz",
		prefix + "/Release",
		prefix + "/Release.gpg",
		prefix + "/InRelease",
	}, e.keys(t, prefix))

	require.Equal(t, []byte("deb bytes"), e.get(t, prefix+"/1.0.0-editor.deb"))
	require.Contains(t, string(e.get(t, prefix+"/Packages")), "1.0.0-editor.deb")
	require.Equal(t, "detached signature", string(e.get(t, prefix+"/Release.gpg")))
	require.Contains(t, string(e.get(t, prefix+"/InRelease")), "-----SIGNED-----")
}

// TestDebianDuplicateRejected verifies the exact-name duplicate guard.
func TestDebianDuplicateRejected(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})
	file := &release.File{FileName: "editor.deb", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller}

	require.NoError(t, e.upload(t, "1.0.0", file, []byte("deb bytes"), false))

	err := e.upload(t, "1.0.0", file, []byte("other bytes"), false)
	require.ErrorIs(t, err, release.ErrDuplicateArtifact)

	// First upload's bytes survive.
	require.Equal(t, []byte("deb bytes"),
		e.get(t, "editor/stable/linux/debian/binary/1.0.0-editor.deb"))
}

// TestDebianPreservesNewest verifies an older upload cannot evict the newest
// deb from the regenerated index.
func TestDebianPreservesNewest(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t,
		&release.Version{Name: "1.0.0", Rollout: 100},
		&release.Version{Name: "2.0.0", Rollout: 100},
	)

	err := e.upload(t, "2.0.0",
		&release.File{FileName: "editor.deb", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("deb 2.0.0"), false)
	require.NoError(t, err)

	err = e.upload(t, "1.0.0",
		&release.File{FileName: "editor.deb", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("deb 1.0.0"), false)
	require.NoError(t, err)

	packages := string(e.get(t, "editor/stable/linux/debian/binary/Packages"))
	require.Contains(t, packages, "1.0.0-editor.deb")
	require.Contains(t, packages, "2.0.0-editor.deb")
}

// TestRedHatPosition verifies the YUM synchronization: binary placement,
// signing, indexing and the .repo pointer.
func TestRedHatPosition(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})

	err := e.upload(t, "1.0.0",
		&release.File{FileName: "editor.rpm", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("rpm bytes"), false)
	require.NoError(t, err)

	prefix := "editor/stable/linux/redhat"
	require.ElementsMatch(t, []string{
		prefix + "/1.0.0-editor.rpm",
		prefix + "/repodata/repomd.xml",
	}, e.keys(t, prefix))

	require.Contains(t, string(e.get(t, prefix+"/repodata/repomd.xml")), "1.0.0-editor.rpm")

	pointer := string(e.get(t, "editor/stable/linux/editor.repo"))
	require.Contains(t, pointer, "[editor]")
	require.Contains(t, pointer, "name=Editor")
	require.Contains(t, pointer, "baseurl=https://downloads.example.com/editor/stable/linux/redhat")
	require.Contains(t, pointer, "gpgcheck=0")

	// The runner signed before indexing.
	runner := e.engine.generators[release.PlatformLinux].(*linuxGenerator).runner.(*fakeRunner)
	require.Equal(t, []string{"rpm", "createrepo"}, runner.calls)
}

// TestLinuxToolFailureLeavesStoreUntouched verifies a failed tool invocation
// publishes nothing.
func TestLinuxToolFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})
	linux := e.engine.generators[release.PlatformLinux].(*linuxGenerator)
	linux.runner.(*fakeRunner).failTool = "createrepo"

	err := e.upload(t, "1.0.0",
		&release.File{FileName: "editor.rpm", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("rpm bytes"), false)
	require.Error(t, err)

	require.Empty(t, e.keys(t, "editor/stable/linux"))
}

// TestLinuxSigningFailureIsFatal verifies the signing error path for debian.
func TestLinuxSigningFailureIsFatal(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})
	linux := e.engine.generators[release.PlatformLinux].(*linuxGenerator)
	linux.signer.(*fakeSigner).fail = true

	err := e.upload(t, "1.0.0",
		&release.File{FileName: "editor.deb", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("deb bytes"), false)
	require.Error(t, err)

	require.Empty(t, e.keys(t, "editor/stable/linux"))
}

// TestLinuxRequiresSigner verifies both repository flavors refuse to run
// unsigned instead of failing mid-sync inside an external tool.
func TestLinuxRequiresSigner(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})
	linux := e.engine.generators[release.PlatformLinux].(*linuxGenerator)
	linux.signer = nil

	err := e.upload(t, "1.0.0",
		&release.File{FileName: "editor.rpm", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("rpm bytes"), false)
	require.ErrorIs(t, err, errNoSigner)

	err = e.upload(t, "1.0.0",
		&release.File{FileName: "editor.deb", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("deb bytes"), false)
	require.ErrorIs(t, err, errNoSigner)

	require.Empty(t, e.keys(t, "editor/stable/linux"))

	err = e.engine.InitLinuxRepos(ctx, e.token, e.app, "stable")
	require.ErrorIs(t, err, errNoSigner)
}

// TestInitLinuxRepos verifies empty repo publication for a fresh channel.
func TestInitLinuxRepos(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := newTestEngine(t)

	require.NoError(t, e.engine.InitLinuxRepos(ctx, e.token, e.app, "stable"))

	redhat := e.keys(t, "editor/stable/linux/redhat")
	require.Equal(t, []string{"editor/stable/linux/redhat/repodata/repomd.xml"}, redhat)

	has, err := e.store.Has(ctx, "editor/stable/linux/editor.repo")
	require.NoError(t, err)
	require.True(t, has)

	debian := e.keys(t, "editor/stable/linux/debian/binary")
	require.ElementsMatch(t, []string{
		"editor/stable/linux/debian/binary/Packages",
		"editor/stable/linux/debian/binary/Packages.gz",
		"editor/stable/linux/debian/binary/Sources",
		"editor/stable/linux/debian/binary/Sources.gz",
		"editor/stable/linux/debian/binary/Release",
		"editor/stable/linux/debian/binary/Release.gpg",
		"editor/stable/linux/debian/binary/InRelease",
	}, debian)
}

// TestLinuxUnsupportedFormat verifies non-package linux files are dropped.
func TestLinuxUnsupportedFormat(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &release.Version{Name: "1.0.0", Rollout: 100})

	err := e.upload(t, "1.0.0",
		&release.File{FileName: "editor.AppImage", Platform: release.PlatformLinux, Arch: release.ArchX64, Type: release.TypeInstaller},
		[]byte("appimage"), false)
	require.NoError(t, err)

	require.Empty(t, e.keys(t, "editor/stable/linux"))
}
