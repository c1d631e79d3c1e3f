// Package slack implements the Slack message bubble.
package slack

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	slackapi "github.com/slack-go/slack"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"channel": {"type": "string"},
		"text": {"type": "string"}
	},
	"required": ["channel", "text"]
}`

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:             domain.BubbleName_Slack,
		ClassName:        "SlackBubble",
		Alias:            "slack",
		Category:         domain.BubbleCategoryService,
		ShortDescription: "Post a message to a Slack channel",
		ParamsSchema:     paramsSchema,
		CredentialOptions: []domain.CredentialType{
			domain.CredentialTypeSlack,
		},
		NewBubble: NewBubble,
	}
}

type Params struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type Bubble struct {
	client *slackapi.Client
	params Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	token, ok := p.Credentials[domain.CredentialTypeSlack]
	if !ok {
		return nil, fmt.Errorf("slack bubble requires a %s credential", domain.CredentialTypeSlack)
	}

	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind slack params: %w", err)
	}

	return &Bubble{
		client: slackapi.New(token),
		params: params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	channelID, timestamp, err := b.client.PostMessageContext(ctx, b.params.Channel,
		slackapi.MsgOptionText(b.params.Text, false))
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to post slack message: %s", err),
		}, nil
	}

	return domain.BubbleActionResult{
		Success: true,
		Data: map[string]any{
			"channel":   channelID,
			"timestamp": timestamp,
		},
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "slack", Unit: "messages", Units: 1},
		},
	}, nil
}
