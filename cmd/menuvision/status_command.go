package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := api.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon up for %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
			fmt.Fprintln(out, renderTable(
				[]string{"Pending", "Processing", "Completed", "Partial", "Failed", "Total"},
				[][]string{{
					fmt.Sprintf("%d", status.Jobs.Pending),
					fmt.Sprintf("%d", status.Jobs.Processing),
					fmt.Sprintf("%d", status.Jobs.Completed),
					fmt.Sprintf("%d", status.Jobs.Partial),
					fmt.Sprintf("%d", status.Jobs.Failed),
					fmt.Sprintf("%d", status.Jobs.Total),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print status as JSON")
	return cmd
}
