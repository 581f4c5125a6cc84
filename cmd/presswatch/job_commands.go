package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"presswatch/internal/ipc"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "audit <paper-id>...",
		Short: "Queue a website audit for one or more papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueue(cmd, ctx, "audit", args, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "lookup <paper-id>...",
		Short: "Queue a contact lookup for one or more papers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueue(cmd, ctx, "lookup", args, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func enqueue(cmd *cobra.Command, ctx *commandContext, jobType string, args []string, jsonOut bool) error {
	paperIDs, err := parsePaperIDs(args)
	if err != nil {
		return err
	}
	return ctx.withClient(func(client *ipc.Client) error {
		job, err := client.Enqueue(jobType, paperIDs)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd, job)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %d for %d papers\n",
			jobType, job.ID, job.TotalCount)
		return nil
	})
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job's pending items",
		Long: "Cancel marks every pending item of the job as canceled. " +
			"Items already running finish normally.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				result, err := client.Cancel(jobID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled %d items of job %d (now %s)\n",
					result.CanceledItems, result.Job.ID, result.Job.Status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}
