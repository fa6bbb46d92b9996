package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/berthd/berth/internal/service/stager"
)

var (
	// stageRecordPath is where the staged-upload record is written and read.
	stageRecordPath string
	// stageVersion, stagePlatform and stageArch describe the staged build.
	stageVersion  string
	stagePlatform string
	stageArch     string
	// stageFileName overrides the staged artifact name.
	stageFileName string

	// stageCmd groups the staging subcommands.
	stageCmd = &cobra.Command{
		Use:   "stage",
		Short: "Park artifacts encrypted before promoting them into a version.",
	}

	// stageSaveCmd encrypts an artifact into the staging area.
	stageSaveCmd = &cobra.Command{
		Use:   "save [artifact-path]",
		Short: "Encrypt an artifact into the staging area.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := stageOptions()
			options.FilePath = args[0]
			options.VersionName = stageVersion
			options.Platform = stagePlatform
			options.Arch = stageArch

			return stager.Save(ctx, options)
		},
	}

	// stageFetchCmd decrypts a staged artifact back to disk.
	stageFetchCmd = &cobra.Command{
		Use:   "fetch [output-path]",
		Short: "Decrypt a staged artifact back to disk.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := stageOptions()
			options.FilePath = args[0]

			return stager.Fetch(ctx, options)
		},
	}

	// stageDiscardCmd removes a staged session.
	stageDiscardCmd = &cobra.Command{
		Use:   "discard",
		Short: "Remove a staged session and its record.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return stager.Discard(ctx, stageOptions())
		},
	}
)

// stageOptions assembles the shared staging options from flags.
func stageOptions() *stager.Options {
	return &stager.Options{
		ConfigPath:   configPath,
		ManifestPath: manifestPath,
		RecordPath:   stageRecordPath,
		FileName:     stageFileName,
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	stageCmd.PersistentFlags().
		StringVar(&stageRecordPath, "record", "berth-staged.yaml", "path to the staged-upload record file")
	stageCmd.PersistentFlags().StringVar(&stageFileName, "name", "", "staged artifact name override")

	stageSaveCmd.Flags().StringVar(&stageVersion, "version", "", "semantic version the build claims")
	stageSaveCmd.Flags().StringVar(&stagePlatform, "platform", "", "target platform (win32, darwin, linux)")
	stageSaveCmd.Flags().StringVar(&stageArch, "arch", "x64", "target architecture (ia32, x64)")

	_ = stageSaveCmd.MarkFlagRequired("version")
	_ = stageSaveCmd.MarkFlagRequired("platform")

	stageCmd.AddCommand(stageSaveCmd, stageFetchCmd, stageDiscardCmd)
	rootCmd.AddCommand(stageCmd)
}
