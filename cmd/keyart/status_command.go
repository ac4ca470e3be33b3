package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"keyart/internal/ipc"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, queue counts, and breaker states",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop background processing in the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "daemon stopped")
				return nil
			})
		},
	}
}

func renderStatus(out io.Writer, status *ipc.StatusResponse) {
	colorize := shouldColorize(out)

	running := "stopped"
	color := ansiYellow
	if status.Running {
		running = "running"
		color = ansiGreen
	}
	if colorize {
		running = color + running + ansiReset
	}
	fmt.Fprintf(out, "Daemon:    %s (pid %d)\n", running, status.PID)
	fmt.Fprintf(out, "Queue DB:  %s\n", status.QueueDBPath)
	fmt.Fprintf(out, "Entities:  %d\n", status.Entities)
	if status.LastError != "" {
		line := "Last err:  " + status.LastError
		if colorize {
			line = ansiRed + line + ansiReset
		}
		fmt.Fprintln(out, line)
	}

	fmt.Fprintln(out)
	statuses := make([]string, 0, len(status.QueueStats))
	for name := range status.QueueStats {
		if name == "total" {
			continue
		}
		statuses = append(statuses, name)
	}
	sort.Strings(statuses)
	rows := make([][]string, 0, len(statuses)+1)
	for _, name := range statuses {
		rows = append(rows, []string{name, fmt.Sprintf("%d", status.QueueStats[name])})
	}
	rows = append(rows, []string{"total", fmt.Sprintf("%d", status.QueueStats["total"])})
	fmt.Fprintln(out, renderTable([]string{"Queue", "Jobs"}, rows, 1))

	if len(status.Breakers) > 0 {
		names := make([]string, 0, len(status.Breakers))
		for name := range status.Breakers {
			names = append(names, name)
		}
		sort.Strings(names)
		rows = rows[:0]
		for _, name := range names {
			rows = append(rows, []string{name, status.Breakers[name]})
		}
		fmt.Fprintln(out, renderTable([]string{"Provider", "Breaker"}, rows))
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
