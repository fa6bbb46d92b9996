package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/berthd/berth/internal/service/uploader"
)

var (
	// uploadChannel selects the release track within the app.
	uploadChannel string
	// uploadVersion is the semantic version the artifact belongs to.
	uploadVersion string
	// uploadPlatform and uploadArch describe the artifact's target.
	uploadPlatform string
	uploadArch     string
	// uploadIsUpdate marks the artifact as an update archive.
	uploadIsUpdate bool
	// uploadSkipIndex disables the content index write.
	uploadSkipIndex bool

	// uploadCmd positions one artifact.
	uploadCmd = &cobra.Command{
		Use:   "upload [artifact-path]",
		Short: "Position one release artifact and regenerate its feeds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &uploader.Options{
				ConfigPath:   configPath,
				ManifestPath: manifestPath,
				ChannelID:    uploadChannel,
				VersionName:  uploadVersion,
				FilePath:     args[0],
				Platform:     uploadPlatform,
				Arch:         uploadArch,
				Update:       uploadIsUpdate,
				SkipIndex:    uploadSkipIndex,
			}

			return uploader.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	uploadCmd.Flags().StringVar(&uploadChannel, "channel", "stable", "release channel id")
	uploadCmd.Flags().StringVar(&uploadVersion, "version", "", "semantic version the artifact belongs to")
	uploadCmd.Flags().StringVar(&uploadPlatform, "platform", "", "target platform (win32, darwin, linux)")
	uploadCmd.Flags().StringVar(&uploadArch, "arch", "x64", "target architecture (ia32, x64)")
	uploadCmd.Flags().BoolVar(&uploadIsUpdate, "update", false, "artifact is an update archive, not an installer")
	uploadCmd.Flags().BoolVar(&uploadSkipIndex, "skip-index", false, "do not write the artifact to the content index")

	_ = uploadCmd.MarkFlagRequired("version")
	_ = uploadCmd.MarkFlagRequired("platform")

	rootCmd.AddCommand(uploadCmd)
}
