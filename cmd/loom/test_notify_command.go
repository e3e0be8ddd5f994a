package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Notifications.DiscordWebhook == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No webhook configured; notification not sent")
				return nil
			}
			service := notifications.NewService(cfg)
			if err := service.TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
