package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set analysis.api_key before running a pipeline.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPath())
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

			rows := [][]string{
				{"log_level", cfg.LogLevel},
				{"log_format", cfg.LogFormat},
				{"staging_dir", cfg.Paths.StagingDir},
				{"library_dir", cfg.Paths.LibraryDir},
				{"data_dir", cfg.Paths.DataDir},
				{"log_dir", cfg.Paths.LogDir},
				{"downloader.binary", cfg.Downloader.Binary},
				{"downloader.default_quality", cfg.Downloader.DefaultQuality},
				{"transcription.binary", cfg.Transcription.Binary},
				{"transcription.model", cfg.Transcription.Model},
				{"transcription.provider_fallback", yesNo(cfg.Transcription.ProviderFallbackURL != "")},
				{"analysis.model", cfg.Analysis.Model},
				{"analysis.api_key", yesNo(strings.TrimSpace(cfg.Analysis.APIKey) != "")},
				{"analysis.compression", yesNo(cfg.Analysis.CompressionEnabled)},
				{"upload.enabled", yesNo(cfg.Upload.Enabled)},
				{"notifications.discord", yesNo(cfg.Notifications.DiscordWebhook != "")},
				{"memory.graph", yesNo(cfg.Memory.GraphEnabled)},
				{"memory.continual", yesNo(cfg.Memory.ContinualEnabled)},
				{"ratelimit.pipeline_per_minute", fmt.Sprintf("%d", cfg.RateLimit.PipelinePerMinute)},
				{"ratelimit.tool_per_minute", fmt.Sprintf("%d", cfg.RateLimit.ToolPerMinute)},
				{"budget.total_limit", fmt.Sprintf("%.2f", cfg.Budget.TotalLimit)},
				{"workflow.retry_attempts", fmt.Sprintf("%d", cfg.Workflow.RetryAttempts)},
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
