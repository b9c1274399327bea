package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string
	var tokenFlag string
	var configFlag string

	ctx := newCommandContext(&serverFlag, &tokenFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "menuvision",
		Short:         "Menu photo processing CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Daemon API base URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Daemon API bearer token")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
