package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"menuvision/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveConfigTarget(targetPath)
			if err != nil {
				return err
			}

			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
			} else if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set the ocr, llm, and imagegen API keys before processing menus.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// resolveConfigTarget expands an explicit destination or falls back to the
// default config location.
func resolveConfigTarget(path string) (string, error) {
	if path = strings.TrimSpace(path); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	target, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data directory:     %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Log directory:      %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "API bind:           %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "API auth:           %s\n", yesNo(cfg.Paths.APIToken != ""))
			fmt.Fprintf(out, "Job budget:         %ds (generation cutoff at %.0f%%)\n",
				cfg.Pipeline.DeadlineSeconds, cfg.Pipeline.DeadlineFraction*100)
			fmt.Fprintf(out, "Generation workers: %d (%d attempts per dish)\n",
				cfg.Pipeline.GenerationWorkers, cfg.Pipeline.GenerationAttempts)
			fmt.Fprintf(out, "Notifications:      %s\n", yesNo(cfg.Notifications.NtfyTopic != ""))
			return nil
		},
	}
}
