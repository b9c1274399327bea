package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"menuvision/internal/config"
	"menuvision/internal/fileutil"
	"menuvision/internal/logging"
	"menuvision/internal/pipeline"
	"menuvision/internal/queue"
)

// newProcessCommand runs the pipeline locally against one image, without a
// daemon.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "process <image>",
		Short: "Process a menu photo locally and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			imagePath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := fileutil.ReadFileCapped(imagePath, cfg.MaxImageBytes())
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			if _, ok := fileutil.DetectImageType(data); !ok {
				return fmt.Errorf("%s is not a JPEG, PNG, or WebP image", imagePath)
			}

			level := "warn"
			if verbose {
				level = cfg.Logging.Level
			}
			logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			orchestrator, err := pipeline.Build(cfg, store, logger)
			if err != nil {
				return err
			}

			job, err := store.NewJob(cmd.Context(), imagePath)
			if err != nil {
				return err
			}
			if err := orchestrator.Process(cmd.Context(), job); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, job)
			}
			renderJobResult(cmd, job)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the finished job as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show pipeline progress logs")
	return cmd
}
