// Package telegram implements the Telegram message bubble.
package telegram

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"chat_id": {"type": "integer"},
		"text": {"type": "string"}
	},
	"required": ["chat_id", "text"]
}`

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:             domain.BubbleName_Telegram,
		ClassName:        "TelegramBubble",
		Alias:            "telegram",
		Category:         domain.BubbleCategoryService,
		ShortDescription: "Send a message through a Telegram bot",
		ParamsSchema:     paramsSchema,
		CredentialOptions: []domain.CredentialType{
			domain.CredentialTypeTelegram,
		},
		NewBubble: NewBubble,
	}
}

type Params struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type Bubble struct {
	bot    *tgbotapi.BotAPI
	params Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	token, ok := p.Credentials[domain.CredentialTypeTelegram]
	if !ok {
		return nil, fmt.Errorf("telegram bubble requires a %s credential", domain.CredentialTypeTelegram)
	}

	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind telegram params: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return &Bubble{
		bot:    bot,
		params: params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	sent, err := b.bot.Send(tgbotapi.NewMessage(b.params.ChatID, b.params.Text))
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to send telegram message: %s", err),
		}, nil
	}

	return domain.BubbleActionResult{
		Success: true,
		Data: map[string]any{
			"message_id": sent.MessageID,
		},
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "telegram", Unit: "messages", Units: 1},
		},
	}, nil
}
