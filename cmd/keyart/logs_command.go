package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"keyart/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show trailing daemon log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LogTail(-1, limit)
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				if !follow {
					return nil
				}
				offset := resp.Offset
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-ticker.C:
					}
					resp, err := client.LogTail(offset, 0)
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(cmd.OutOrStdout(), line)
					}
					offset = resp.Offset
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Lines of history to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
