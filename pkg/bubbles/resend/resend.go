// Package resend implements the email-sending bubble backed by the Resend
// API.
package resend

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	resendapi "github.com/resend/resend-go/v2"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"from": {"type": "string"},
		"to": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1
		},
		"subject": {"type": "string"},
		"html": {"type": "string"},
		"text": {"type": "string"}
	},
	"required": ["to", "subject"]
}`

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:             domain.BubbleName_Resend,
		ClassName:        "ResendBubble",
		Alias:            "email",
		Category:         domain.BubbleCategoryService,
		ShortDescription: "Send transactional email through Resend",
		ParamsSchema:     paramsSchema,
		CredentialOptions: []domain.CredentialType{
			domain.CredentialTypeResend,
		},
		NewBubble: NewBubble,
	}
}

type Params struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type Bubble struct {
	client *resendapi.Client
	params Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	apiKey, ok := p.Credentials[domain.CredentialTypeResend]
	if !ok {
		return nil, fmt.Errorf("resend bubble requires a %s credential", domain.CredentialTypeResend)
	}

	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind resend params: %w", err)
	}

	if params.From == "" {
		params.From = "noreply@bubblelab.ai"
	}

	return &Bubble{
		client: resendapi.NewClient(apiKey),
		params: params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	sent, err := b.client.Emails.SendWithContext(ctx, &resendapi.SendEmailRequest{
		From:    b.params.From,
		To:      b.params.To,
		Subject: b.params.Subject,
		Html:    b.params.HTML,
		Text:    b.params.Text,
	})
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to send email: %s", err),
		}, nil
	}

	return domain.BubbleActionResult{
		Success: true,
		Data: map[string]any{
			"email_id": sent.Id,
		},
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "resend", Unit: "emails", Units: 1},
		},
	}, nil
}
