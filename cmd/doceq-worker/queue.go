package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newQueueCmd groups the queue-wide admin operations from spec §4.8:
// pause/resume claiming and change concurrency.
func newQueueCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and administer queue-wide settings",
	}
	cmd.AddCommand(
		newQueueStatusCmd(v),
		newQueuePauseCmd(v),
		newQueueResumeCmd(v),
		newQueueConcurrencyCmd(v),
	)
	return cmd
}

func newQueueStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show paused/concurrency settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()

			settings, err := engine.GetSettings(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "paused:      %t\n", settings.Paused)
			fmt.Fprintf(os.Stdout, "concurrency: %d\n", settings.Concurrency)
			return nil
		},
	}
}

func newQueuePauseCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Stop Claimer from leasing new work",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()
			return engine.SetPaused(ctx, true)
		},
	}
}

func newQueueResumeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Allow Claimer to lease work again",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()
			return engine.SetPaused(ctx, false)
		},
	}
}

func newQueueConcurrencyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "concurrency <n>",
		Short: "Change the configured concurrency (takes effect on the next worker restart)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("concurrency must be a positive integer")
			}
			ctx := cmd.Context()
			engine, db, err := newEngine(ctx, loadConfig(v))
			if err != nil {
				return err
			}
			defer db.Close()
			return engine.SetConcurrency(ctx, n)
		},
	}
}
