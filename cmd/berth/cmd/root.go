package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/berthd/berth/internal/config"
	"github.com/berthd/berth/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// manifestPath to the application manifest YAML file.
	manifestPath string

	// rootCmd represents the base command for the positioning engine CLI.
	rootCmd = &cobra.Command{
		Use:   "berth",
		Short: "Position release artifacts and maintain update feeds.",
		Long: `Routes uploaded release artifacts to their platform-specific storage
locations and regenerates the update manifests desktop clients poll:
Windows RELEASES indexes, macOS RELEASES.json feeds, Linux YUM and APT
repositories and the latest-installer download pointers.

Every mutating command takes the application's advisory lock, so concurrent
publishes of the same app cannot interleave.`,
	}
)

// Execute runs the berth CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&manifestPath, "manifest", "m", "", "path to the application manifest file")
}
