package release

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Platform identifies the operating system an artifact targets.
type Platform string

// Supported target platforms.
const (
	PlatformWin32  Platform = "win32"
	PlatformDarwin Platform = "darwin"
	PlatformLinux  Platform = "linux"
)

// Arch identifies the CPU architecture an artifact targets.
type Arch string

// Architectures the positioning engine acts on.
const (
	ArchIA32 Arch = "ia32"
	ArchX64  Arch = "x64"
)

// FileType distinguishes full installers from update archives.
type FileType string

// Known artifact types.
const (
	TypeInstaller FileType = "installer"
	TypeUpdate    FileType = "update"
)

// RolloutFull is the rollout percentage at which a version is fully released.
const RolloutFull = 100

// App is a distributed application. The engine does not own App identity;
// it only keys placement and manifest side effects by it.
type App struct {
	// Slug is the unique path segment the app's keys are rooted at.
	Slug string `yaml:"slug" json:"slug"`
	// Name is the human-readable application name, used for latest-installer filenames.
	Name string `yaml:"name" json:"name"`
	// Channels are the release tracks owned by the app.
	Channels []*Channel `yaml:"channels" json:"channels"`
}

// Channel is a named release track (stable, beta, ...) within an App.
type Channel struct {
	// ID is stable and used as a path segment.
	ID string `yaml:"id" json:"id"`
	// Name is the human-readable channel name.
	Name string `yaml:"name" json:"name"`
	// Versions is the channel's version list, ordered by semantic version.
	Versions []*Version `yaml:"versions" json:"versions"`
}

// Version is a published release within a Channel.
type Version struct {
	// Name is a valid semantic version string, unique within the channel.
	Name string `yaml:"name" json:"name"`
	// Dead permanently excludes the version from rollout and latest computation.
	Dead bool `yaml:"dead" json:"dead"`
	// Rollout is the percentage of the audience that should see this version.
	Rollout int `yaml:"rollout" json:"rollout"`
	// Files are the artifacts uploaded for this version.
	Files []*File `yaml:"files" json:"files"`
}

// File is a single uploaded artifact belonging to a Version.
type File struct {
	// FileName is the artifact's base name.
	FileName string `yaml:"fileName" json:"fileName"`
	// Platform the artifact targets.
	Platform Platform `yaml:"platform" json:"platform"`
	// Arch the artifact targets.
	Arch Arch `yaml:"arch" json:"arch"`
	// Type is installer or update.
	Type FileType `yaml:"type" json:"type"`
	// SHA1 is the lowercase hex SHA-1 of the artifact bytes, empty until recorded.
	SHA1 string `yaml:"sha1" json:"sha1"`
	// SHA256 is the lowercase hex SHA-256 of the artifact bytes, empty until recorded.
	SHA256 string `yaml:"sha256" json:"sha256"`
}

// identifyingSuffixes is the fixed set of suffixes that make two files of the
// same (version, platform, arch) the same logical artifact.
var identifyingSuffixes = []string{
	"-full.nupkg",
	"-delta.nupkg",
	".exe",
	".msi",
	".zip",
	".dmg",
	".pkg",
	".deb",
	".rpm",
}

// ErrDuplicateArtifact indicates an upload whose identifying suffix already
// exists on the version for the same platform and architecture.
var ErrDuplicateArtifact = errors.New("an artifact with the same identifying suffix already exists")

// IdentifyingSuffix returns the matching identifying suffix of a filename,
// or an empty string when the filename matches none.
func IdentifyingSuffix(fileName string) string {
	for _, suffix := range identifyingSuffixes {
		if strings.HasSuffix(fileName, suffix) {
			return suffix
		}
	}

	return ""
}

// ValidArch reports whether the engine positions artifacts for the architecture.
func ValidArch(arch Arch) bool {
	return arch == ArchIA32 || arch == ArchX64
}

// ValidPlatform reports whether the platform is one the engine recognizes.
func ValidPlatform(platform Platform) bool {
	switch platform {
	case PlatformWin32, PlatformDarwin, PlatformLinux:
		return true
	default:
		return false
	}
}

// CheckNewFile rejects an upload that would silently shadow an existing
// logical artifact of the version. Files with a different name but the same
// identifying suffix on the same (platform, arch) are the same logical
// artifact.
func (v *Version) CheckNewFile(file *File) error {
	suffix := IdentifyingSuffix(file.FileName)
	if suffix == "" {
		return nil
	}

	for _, existing := range v.Files {
		if existing.FileName == file.FileName ||
			existing.Platform != file.Platform ||
			existing.Arch != file.Arch {
			continue
		}

		if IdentifyingSuffix(existing.FileName) == suffix {
			return fmt.Errorf("%w: %s conflicts with %s", ErrDuplicateArtifact, file.FileName, existing.FileName)
		}
	}

	return nil
}

// FilesFor returns the version's files for a (platform, arch) pair.
func (v *Version) FilesFor(platform Platform, arch Arch) []*File {
	var out []*File
	for _, f := range v.Files {
		if f.Platform == platform && f.Arch == arch {
			out = append(out, f)
		}
	}

	return out
}

// Channel returns the app's channel with the given id, or nil.
func (a *App) Channel(id string) *Channel {
	for _, c := range a.Channels {
		if c.ID == id {
			return c
		}
	}

	return nil
}

// Version returns the channel's version with the given name, or nil.
func (c *Channel) Version(name string) *Version {
	for _, v := range c.Versions {
		if v.Name == name {
			return v
		}
	}

	return nil
}

// StagedUpload is an artifact set uploaded but not yet promoted into a
// Version. Its files live encrypted under a quarantined key prefix until
// promotion or discard.
type StagedUpload struct {
	// ID identifies the staged upload record.
	ID string `yaml:"id" json:"id"`
	// SaveString is the opaque session id the staged keys are rooted at.
	SaveString string `yaml:"saveString" json:"saveString"`
	// Version is the semantic version the build claims.
	Version string `yaml:"version" json:"version"`
	// Platform and Arch the staged build targets.
	Platform Platform `yaml:"platform" json:"platform"`
	Arch     Arch     `yaml:"arch" json:"arch"`
	// Date is when the build was staged.
	Date time.Time `yaml:"date" json:"date"`
	// CipherPassword encrypts the staged files at rest.
	CipherPassword string `yaml:"cipherPassword" json:"cipherPassword"`
	// Filenames lists the staged artifacts.
	Filenames []string `yaml:"filenames" json:"filenames"`
}
