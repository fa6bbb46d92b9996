//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/berthd/berth/internal/domain/release"
)

var (
	// errSlugRequired indicates a manifest without an app slug.
	errSlugRequired = errors.New("application slug must be provided")
	// errNameRequired indicates a manifest without an app name.
	errNameRequired = errors.New("application name must be provided")
)

// LoadManifest reads an application manifest, the YAML description of an app
// with its channels, versions and recorded files that a metadata store would
// otherwise supply.
func LoadManifest(path string) (*release.App, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var app release.App
	if err := yaml.Unmarshal(contents, &app); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	if app.Slug == "" {
		return nil, errSlugRequired
	}

	if app.Name == "" {
		return nil, errNameRequired
	}

	return &app, nil
}

// SaveManifest writes the application manifest back, persisting any hashes
// recorded during positioning.
func SaveManifest(path string, app *release.App) error {
	data, err := yaml.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
