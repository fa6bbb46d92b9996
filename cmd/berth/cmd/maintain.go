package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/berthd/berth/internal/service/maintain"
)

var (
	// maintainChannel selects the release track for channel-scoped commands.
	maintainChannel string
	// iconPNGPath and iconICOPath are local icon files.
	iconPNGPath string
	iconICOPath string

	// initReposCmd publishes empty Linux repositories for a channel.
	initReposCmd = &cobra.Command{
		Use:   "init-repos",
		Short: "Publish empty YUM and APT repositories for a new channel.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return maintain.InitRepos(ctx, maintainOptions())
		},
	}

	// refreshLatestCmd re-evaluates the latest-installer pointers.
	refreshLatestCmd = &cobra.Command{
		Use:   "refresh-latest",
		Short: "Re-evaluate the channel's latest-installer pointers.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return maintain.RefreshLatest(ctx, maintainOptions())
		},
	}

	// iconCmd uploads the application's icons.
	iconCmd = &cobra.Command{
		Use:   "icon",
		Short: "Upload the application's icon files.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := maintainOptions()
			options.PNGPath = iconPNGPath
			options.ICOPath = iconICOPath

			return maintain.PositionIcon(ctx, options)
		},
	}
)

// maintainOptions assembles the shared maintenance options from flags.
func maintainOptions() *maintain.Options {
	return &maintain.Options{
		ConfigPath:   configPath,
		ManifestPath: manifestPath,
		ChannelID:    maintainChannel,
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	for _, command := range []*cobra.Command{initReposCmd, refreshLatestCmd} {
		command.Flags().StringVar(&maintainChannel, "channel", "stable", "release channel id")
	}

	iconCmd.Flags().StringVar(&iconPNGPath, "png", "", "path to the PNG icon")
	iconCmd.Flags().StringVar(&iconICOPath, "ico", "", "path to the ICO icon")

	rootCmd.AddCommand(initReposCmd, refreshLatestCmd, iconCmd)
}
