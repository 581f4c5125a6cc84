package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"presswatch/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}
	cmd.AddCommand(newQueueStatusCommand(ctx))
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueItemsCommand(ctx))
	cmd.AddCommand(newQueueHistoryCommand(ctx))
	cmd.AddCommand(newQueueHistoryItemsCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueClearHistoryCommand(ctx))
	return cmd
}

var jobHeaders = []string{"ID", "Type", "Status", "Progress", "Created"}
var jobAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}

var itemHeaders = []string{"ID", "Job", "Paper", "Type", "Status", "Detail"}
var itemAligns = []columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show item counts by status and the pause flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"paused": status.Paused,
						"stats":  status.Stats,
					})
				}
				stdout := cmd.OutOrStdout()
				if status.Paused {
					fmt.Fprintln(stdout, "Queue is paused")
				}
				rows := statsRows(status.Stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs with outstanding work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				jobs, err := client.ActiveJobs()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(jobHeaders, jobRows(jobs), jobAligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueItemsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List pending and running items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				items, err := client.ActiveItems()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No active items")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(itemHeaders, itemRows(items), itemAligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				jobs, err := client.HistoryJobs(limit, offset)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No finished jobs")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(jobHeaders, jobRows(jobs), jobAligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Jobs to skip")
	return cmd
}

func newQueueHistoryItemsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history-items",
		Short: "List finished items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				items, err := client.HistoryItems(limit, offset)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No finished items")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(itemHeaders, itemRows(items), itemAligns))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum items to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Items to skip")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Cancel every pending item in every job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				result, err := client.ClearQueue()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled %d items across %d jobs\n",
					result.CanceledItems, result.CanceledJobs)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func newQueueClearHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Delete all finished jobs and their items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				result, err := client.ClearHistory()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d finished jobs\n", result.Deleted)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}
