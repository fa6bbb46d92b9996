package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestIdentifyingSuffix exercises matched and unmatched filenames.
func TestIdentifyingSuffix(t *testing.T) {
	t.Parallel()

	require.Equal(t, "-full.nupkg", IdentifyingSuffix("App-1.0.0-full.nupkg"))
	require.Equal(t, "-delta.nupkg", IdentifyingSuffix("App-1.0.0-delta.nupkg"))
	require.Equal(t, ".dmg", IdentifyingSuffix("App.dmg"))
	require.Equal(t, "", IdentifyingSuffix("RELEASES"))
	require.Equal(t, "", IdentifyingSuffix("notes.txt"))
}

// TestCheckNewFile verifies the same-logical-artifact guard.
func TestCheckNewFile(t *testing.T) {
	t.Parallel()

	v := &Version{
		Name: "1.0.0",
		Files: []*File{
			{FileName: "App.dmg", Platform: PlatformDarwin, Arch: ArchX64, Type: TypeInstaller},
			{FileName: "App.zip", Platform: PlatformDarwin, Arch: ArchX64, Type: TypeUpdate},
		},
	}

	// A second .dmg with a different name is the same logical artifact.
	err := v.CheckNewFile(&File{FileName: "App-signed.dmg", Platform: PlatformDarwin, Arch: ArchX64})
	require.ErrorIs(t, err, ErrDuplicateArtifact)

	// Re-upload of the exact same name passes the suffix guard (put-level
	// idempotence handles it downstream).
	require.NoError(t, v.CheckNewFile(&File{FileName: "App.dmg", Platform: PlatformDarwin, Arch: ArchX64}))

	// Same suffix on another platform/arch is a distinct artifact.
	require.NoError(t, v.CheckNewFile(&File{FileName: "App.dmg", Platform: PlatformDarwin, Arch: ArchIA32}))

	// Non-identifying names are never rejected.
	require.NoError(t, v.CheckNewFile(&File{FileName: "App.blockmap", Platform: PlatformDarwin, Arch: ArchX64}))
}

// TestValidPlatformArch checks the closed platform/arch sets.
func TestValidPlatformArch(t *testing.T) {
	t.Parallel()

	require.True(t, ValidPlatform(PlatformWin32))
	require.True(t, ValidPlatform(PlatformDarwin))
	require.True(t, ValidPlatform(PlatformLinux))
	require.False(t, ValidPlatform("freebsd"))

	require.True(t, ValidArch(ArchIA32))
	require.True(t, ValidArch(ArchX64))
	require.False(t, ValidArch("arm64"))
}

// TestNewStagedUpload verifies generated identifiers are distinct and populated.
func TestNewStagedUpload(t *testing.T) {
	t.Parallel()

	s := NewStagedUpload("1.2.3", PlatformWin32, ArchX64)
	require.NotEmpty(t, s.ID)
	require.NotEmpty(t, s.SaveString)
	require.NotEmpty(t, s.CipherPassword)
	require.NotEqual(t, s.SaveString, s.CipherPassword)
	require.Equal(t, "1.2.3", s.Version)
	require.False(t, s.Date.IsZero())
}
