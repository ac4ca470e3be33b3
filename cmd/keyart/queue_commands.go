package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"keyart/internal/api"
	"keyart/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(statuses)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						strconv.FormatInt(job.ID, 10),
						job.Type,
						job.Status,
						job.Progress.Stage,
						fmt.Sprintf("%d/%d", job.RetryCount, job.MaxRetries),
						job.ErrorKind,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable([]string{"ID", "Type", "Status", "Stage", "Retries", "Error"}, rows, 0))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, processing, completed, failed, cancelled)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueDescribe(id)
				if err != nil {
					return err
				}
				printJob(cmd, resp.Job)
				return nil
			})
		},
	}
}

func printJob(cmd *cobra.Command, job api.JobView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %d (%s)\n", job.ID, job.Type)
	fmt.Fprintf(out, "  Status:      %s\n", job.Status)
	fmt.Fprintf(out, "  Priority:    %d\n", job.Priority)
	if job.Progress.Stage != "" {
		fmt.Fprintf(out, "  Stage:       %s (%.0f%%) %s\n",
			job.Progress.Stage, job.Progress.Percent, job.Progress.Message)
	}
	fmt.Fprintf(out, "  Retries:     %d/%d\n", job.RetryCount, job.MaxRetries)
	if job.NextRetryAt != "" {
		fmt.Fprintf(out, "  Next retry:  %s\n", job.NextRetryAt)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:       [%s] %s\n", job.ErrorKind, job.ErrorMessage)
	}
	fmt.Fprintf(out, "  Cancellable: %s\n", yesNo(job.Cancellable))
	if job.DedupeKey != "" {
		fmt.Fprintf(out, "  Dedupe key:  %s\n", job.DedupeKey)
	}
	fmt.Fprintf(out, "  Created:     %s\n", job.CreatedAt)
	fmt.Fprintf(out, "  Updated:     %s\n", job.UpdatedAt)
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueCancel(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %d is now %s\n", id, resp.Status)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed jobs to pending; no ids retries all",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetry(ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d job(s) returned to pending\n", resp.Updated)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs in one terminal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear(status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d job(s) removed\n", resp.Removed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "completed", "Terminal status to clear (completed, failed, cancelled)")
	return cmd
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}
