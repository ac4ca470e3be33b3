package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"keyart/internal/ipc"
)

func parseEntityArgs(args []string) (string, int64, error) {
	entityType := args[0]
	entityID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || entityID <= 0 {
		return "", 0, fmt.Errorf("invalid entity id %q", args[1])
	}
	return entityType, entityID, nil
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var assetTypes []string
	var noSelect bool
	cmd := &cobra.Command{
		Use:   "refresh <entity-type> <id>",
		Short: "Fetch fresh candidates from all providers for one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, entityID, err := parseEntityArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Refresh(ipc.RefreshRequest{
					EntityType: entityType,
					EntityID:   entityID,
					AssetTypes: assetTypes,
					NoSelect:   noSelect,
					Urgent:     true,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refresh queued as job %d\n", resp.Job.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&assetTypes, "asset", nil, "Restrict to asset types (poster, fanart, ...)")
	cmd.Flags().BoolVar(&noSelect, "no-select", false, "Skip auto-selection after the fetch")
	return cmd
}

func newSelectCommand(ctx *commandContext) *cobra.Command {
	selectCmd := &cobra.Command{
		Use:   "select",
		Short: "Run or override artwork selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	selectCmd.AddCommand(newSelectAutoCommand(ctx))
	selectCmd.AddCommand(newSelectChooseCommand(ctx))
	selectCmd.AddCommand(newSelectBlockCommand(ctx, false))
	selectCmd.AddCommand(newSelectBlockCommand(ctx, true))
	return selectCmd
}

func newSelectAutoCommand(ctx *commandContext) *cobra.Command {
	var assetTypes []string
	cmd := &cobra.Command{
		Use:   "auto <entity-type> <id>",
		Short: "Queue auto-selection over stored candidates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, entityID, err := parseEntityArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Select(ipc.SelectRequest{
					EntityType: entityType,
					EntityID:   entityID,
					AssetTypes: assetTypes,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "selection queued as job %d\n", resp.Job.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&assetTypes, "asset", nil, "Restrict to asset types")
	return cmd
}

func newSelectChooseCommand(ctx *commandContext) *cobra.Command {
	var lock bool
	cmd := &cobra.Command{
		Use:   "choose <candidate-id>",
		Short: "Manually select one candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return fmt.Errorf("invalid candidate id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Choose(id, lock); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "candidate %d selected\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&lock, "lock", false, "Lock the slot so auto-selection leaves it alone")
	return cmd
}

func newSelectBlockCommand(ctx *commandContext, unblock bool) *cobra.Command {
	use, short := "block <candidate-id>", "Block a candidate from ever being selected"
	if unblock {
		use, short = "unblock <candidate-id>", "Make a blocked candidate eligible again"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return fmt.Errorf("invalid candidate id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Block(id, unblock); err != nil {
					return err
				}
				if unblock {
					fmt.Fprintf(cmd.OutOrStdout(), "candidate %d unblocked\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "candidate %d blocked\n", id)
				}
				return nil
			})
		},
	}
}

func newCandidatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <entity-type> <id>",
		Short: "List stored artwork candidates for one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, entityID, err := parseEntityArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Candidates(entityType, entityID)
				if err != nil {
					return err
				}
				if len(resp.Candidates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no candidates stored")
					return nil
				}
				rows := make([][]string, 0, len(resp.Candidates))
				for _, c := range resp.Candidates {
					marker := ""
					switch {
					case c.Blocked:
						marker = "blocked"
					case c.Selected:
						marker = "selected (" + c.SelectedBy + ")"
					}
					rows = append(rows, []string{
						strconv.FormatInt(c.ID, 10),
						c.AssetType,
						c.Provider,
						fmt.Sprintf("%dx%d", c.Width, c.Height),
						c.Language,
						marker,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable([]string{"ID", "Asset", "Provider", "Size", "Lang", "State"}, rows, 0))
				return nil
			})
		},
	}
}

func newDecisionsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "decisions <entity-type> <id>",
		Short: "Show recent selection decisions for one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, entityID, err := parseEntityArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Decisions(entityType, entityID, limit)
				if err != nil {
					return err
				}
				if len(resp.Decisions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no decisions recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Decisions))
				for _, d := range resp.Decisions {
					rows = append(rows, []string{
						d.DecidedAt,
						d.AssetType,
						d.Provider,
						yesNo(d.Applied),
						d.Reason,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(),
					renderTable([]string{"When", "Asset", "Provider", "Applied", "Reason"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum decisions to show")
	return cmd
}

func newLockCommand(ctx *commandContext) *cobra.Command {
	var unlock bool
	cmd := &cobra.Command{
		Use:   "lock <entity-type> <id> <asset-type>",
		Short: "Pin one asset slot against auto-selection",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, entityID, err := parseEntityArgs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Lock(ipc.LockRequest{
					EntityType: entityType,
					EntityID:   entityID,
					AssetType:  args[2],
					Locked:     !unlock,
				}); err != nil {
					return err
				}
				state := "locked"
				if unlock {
					state = "unlocked"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s/%d %s\n", args[2], entityType, entityID, state)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unlock, "unlock", false, "Release the lock instead")
	return cmd
}
