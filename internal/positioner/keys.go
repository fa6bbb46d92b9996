package positioner

import (
	"fmt"
	"strings"

	"github.com/berthd/berth/internal/domain/release"
)

// Key layout, rooted at the app slug. Updater clients depend on these paths
// byte-for-byte; change nothing here without a migration plan.
//
//	{slug}/icon.png, {slug}/icon.ico
//	{slug}/.lock
//	{slug}/{channelId}/_index/{version}/{platform}/{arch}/{fileName}
//	{slug}/{channelId}/latest/{platform}/{arch}/{appName}{ext}[.ref]
//	{slug}/{channelId}/win32/{arch}/{fileName}, .../RELEASES, .../{0..100}/RELEASES
//	{slug}/{channelId}/darwin/{arch}/{fileName}, .../RELEASES.json, .../{0..100}/RELEASES.json
//	{slug}/{channelId}/linux/redhat/..., {slug}/{channelId}/linux/{slug}.repo
//	{slug}/{channelId}/linux/debian/binary/...
//	{slug}/temp/{saveString}/{fileName}

// channelKey joins path segments under {slug}/{channelId}.
func channelKey(app *release.App, channelID string, segments ...string) string {
	parts := append([]string{app.Slug, channelID}, segments...)
	return strings.Join(parts, "/")
}

// indexKey is the append-only content index location of an artifact.
func indexKey(app *release.App, channelID, version string, platform release.Platform, arch release.Arch, fileName string) string {
	return channelKey(app, channelID, "_index", version, string(platform), string(arch), fileName)
}

// platformFileKey is the flat per-platform location of a positioned artifact.
func platformFileKey(app *release.App, channelID string, platform release.Platform, arch release.Arch, fileName string) string {
	return channelKey(app, channelID, string(platform), string(arch), fileName)
}

// win32ReleasesKey is the RELEASES index location. A negative rollout selects
// the unscoped default variant.
func win32ReleasesKey(app *release.App, channelID string, arch release.Arch, rolloutPct int) string {
	if rolloutPct < 0 {
		return channelKey(app, channelID, "win32", string(arch), "RELEASES")
	}

	return channelKey(app, channelID, "win32", string(arch), fmt.Sprintf("%d", rolloutPct), "RELEASES")
}

// darwinReleasesKey is the RELEASES.json feed location. A negative rollout
// selects the unscoped default variant.
func darwinReleasesKey(app *release.App, channelID string, arch release.Arch, rolloutPct int) string {
	if rolloutPct < 0 {
		return channelKey(app, channelID, "darwin", string(arch), "RELEASES.json")
	}

	return channelKey(app, channelID, "darwin", string(arch), fmt.Sprintf("%d", rolloutPct), "RELEASES.json")
}

// redhatPrefix is the root of the createrepo-indexed tree.
func redhatPrefix(app *release.App, channelID string) string {
	return channelKey(app, channelID, "linux", "redhat")
}

// repoPointerKey is the yum .repo pointer file location.
func repoPointerKey(app *release.App, channelID string) string {
	return channelKey(app, channelID, "linux", app.Slug+".repo")
}

// debianPrefix is the root of the Debian-style flat repository.
func debianPrefix(app *release.App, channelID string) string {
	return channelKey(app, channelID, "linux", "debian", "binary")
}

// latestKey is the canonical latest-installer location for a pair.
func latestKey(app *release.App, channelID string, platform release.Platform, arch release.Arch, fileName string) string {
	return channelKey(app, channelID, "latest", string(platform), string(arch), fileName)
}

// tempKey is the encrypted staged-artifact location.
func tempKey(app *release.App, saveString, fileName string) string {
	return strings.Join([]string{app.Slug, "temp", saveString, fileName}, "/")
}

// tempPrefix is the staged-upload key prefix removed on cleanup.
func tempPrefix(app *release.App, saveString string) string {
	return strings.Join([]string{app.Slug, "temp", saveString}, "/")
}

// iconKey is the application icon location for an extension (png, ico).
func iconKey(app *release.App, ext string) string {
	return app.Slug + "/icon." + ext
}
