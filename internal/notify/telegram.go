package notify

import (
	"context"
	"fmt"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts via the Bot API sendMessage method.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{apiBase: telegramAPI, token: token, chatID: chatID}
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.apiBase, "/"), t.token)
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    title + "\n" + message,
	}
	if err := postJSON(ctx, defaultClient, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
