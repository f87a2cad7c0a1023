package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/promfleet/promfleet/internal/model"
)

// Telegram sends alert groups as HTML messages via a shared bot. The target
// is the chat id.
type Telegram struct {
	client *tgbot.Bot
}

func NewTelegram(token string) (*Telegram, error) {
	client, err := tgbot.New(token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{client: client}, nil
}

func (t *Telegram) Send(ctx context.Context, target string, data *model.WebhookMessage) error {
	var text strings.Builder
	fmt.Fprintf(&text, "<b>[%s]</b> %s\n",
		html.EscapeString(data.Status),
		html.EscapeString(data.CommonLabels["alertname"]))
	for _, a := range data.Alerts {
		if summary, ok := a.Annotations["summary"]; ok {
			fmt.Fprintf(&text, "%s\n", html.EscapeString(summary))
		}
	}

	_, err := t.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    target,
		Text:      text.String(),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message to %s: %w", target, err)
	}
	return nil
}
