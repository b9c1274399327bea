package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"menuvision/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Submit and inspect daemon jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newJobsSubmitCommand(ctx))
	cmd.AddCommand(newJobsStatusCommand(ctx))
	cmd.AddCommand(newJobsListCommand(ctx))
	return cmd
}

func newJobsSubmitCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "submit <image>",
		Short: "Upload a menu photo to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := api.Submit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if wait {
				job, err = api.WaitForTerminal(cmd.Context(), job.ID, 2*time.Second)
				if err != nil {
					return err
				}
			}
			if jsonOut {
				return writeJSON(cmd, job)
			}
			if !wait {
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s\n", job.ID)
				return nil
			}
			renderClientJob(cmd, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the job as JSON")
	return cmd
}

func newJobsStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			job, err := api.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, job)
			}
			renderClientJob(cmd, job)
			if job.ProgressMessage != "" && job.Status == string(queue.StatusProcessing) {
				fmt.Fprintf(cmd.OutOrStdout(), "Progress: %s\n", job.ProgressMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the job as JSON")
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var wanted queue.Status
			if statusFilter != "" {
				status, ok := queue.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q (valid: %s)", statusFilter, statusNames())
				}
				wanted = status
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			jobs, err := api.Jobs(cmd.Context())
			if err != nil {
				return err
			}
			if wanted != "" {
				filtered := jobs[:0]
				for _, job := range jobs {
					if job.Status == string(wanted) {
						filtered = append(filtered, job)
					}
				}
				jobs = filtered
			}
			if jsonOut {
				return writeJSON(cmd, jobs)
			}
			renderJobList(cmd, jobs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print jobs as JSON")
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show jobs with this status")
	return cmd
}

func statusNames() string {
	names := make([]string, 0, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}
