package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"keyart/internal/config"
	"keyart/internal/ipc"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Queue a full catalog sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sweep()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sweep queued as job %d\n", resp.Job.ID)
				return nil
			})
		},
	}
}

func newGCCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Queue a garbage collection pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.GC()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "gc queued as job %d\n", resp.Job.ID)
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test push notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				if !resp.Sent {
					return fmt.Errorf("notification not sent")
				}
				return nil
			})
		},
	}
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or bootstrap the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print an annotated sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:    %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log dir:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Image cache: %s\n", cfg.Paths.ImageCacheDir)
			fmt.Fprintf(out, "Socket:      %s\n", cfg.Paths.SocketPath)
			fmt.Fprintf(out, "Lock:        %s\n", cfg.Paths.LockPath)
			return nil
		},
	})
	return configCmd
}
