package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir is required")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Downloader.Binary) == "" {
		problems = append(problems, "downloader.binary is required")
	}
	if c.Downloader.TimeoutSeconds <= 0 {
		problems = append(problems, "downloader.timeout_seconds must be positive")
	}
	if strings.TrimSpace(c.Transcription.Binary) == "" {
		problems = append(problems, "transcription.binary is required")
	}
	if c.Analysis.CompressionEnabled && c.Analysis.CompressionMinTokens <= 0 {
		problems = append(problems, "analysis.compression_min_tokens must be positive when compression is enabled")
	}
	if c.RateLimit.PipelinePerMinute <= 0 {
		problems = append(problems, "ratelimit.pipeline_per_minute must be positive")
	}
	if c.RateLimit.ToolPerMinute <= 0 {
		problems = append(problems, "ratelimit.tool_per_minute must be positive")
	}
	if c.Budget.TotalLimit < 0 {
		problems = append(problems, "budget.total_limit must not be negative")
	}
	for task, limit := range c.Budget.PerTask {
		if limit < 0 {
			problems = append(problems, fmt.Sprintf("budget.per_task.%s must not be negative", task))
		}
	}
	if c.Workflow.RetryAttempts < 1 {
		problems = append(problems, "workflow.retry_attempts must be at least 1")
	}
	if c.Workflow.RetryDelaySeconds <= 0 {
		problems = append(problems, "workflow.retry_delay_seconds must be positive")
	}
	if webhook := c.Notifications.DiscordWebhook; webhook != "" && !strings.HasPrefix(webhook, "https://") {
		problems = append(problems, "notifications.discord_webhook must be an https URL")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
