package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/berthd/berth/internal/service/maintain"
)

var (
	// lockCmd groups the advisory-lock subcommands.
	lockCmd = &cobra.Command{
		Use:   "lock",
		Short: "Inspect or recover the application's advisory lock.",
	}

	// lockStatusCmd reports the current lock holder.
	lockStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show whether the application's lock is held.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			token, err := maintain.LockStatus(ctx, maintainOptions())
			if err != nil {
				return err
			}

			if token == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "free")
				return nil
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "held by", token)

			return nil
		},
	}

	// lockClearCmd force-releases the lock.
	lockClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Force-release the application's lock after a crashed publisher.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return maintain.LockClear(ctx, maintainOptions())
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	lockCmd.AddCommand(lockStatusCmd, lockClearCmd)
	rootCmd.AddCommand(lockCmd)
}
