package notify

import (
	"context"
	"fmt"
)

// DiscordSender posts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL}
}

func (d *DiscordSender) Name() string { return "discord" }

func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"embeds": []map[string]string{{
			"title":       title,
			"description": message,
		}},
	}
	if err := postJSON(ctx, defaultClient, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}
