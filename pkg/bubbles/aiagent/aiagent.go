// Package aiagent implements the AI agent bubble backed by the OpenAI chat
// completion API. Token usage reported by the API drives credit accounting.
package aiagent

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	openai "github.com/sashabaranov/go-openai"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"model": {"type": "string"},
		"system_prompt": {"type": "string"},
		"message": {"type": "string", "minLength": 1},
		"temperature": {"type": "number", "minimum": 0, "maximum": 2}
	},
	"required": ["message"]
}`

const defaultModel = openai.GPT4oMini

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:             domain.BubbleName_AIAgent,
		ClassName:        "AIAgentBubble",
		Alias:            "ai",
		Category:         domain.BubbleCategoryService,
		ShortDescription: "Run a prompt through an AI model",
		ParamsSchema:     paramsSchema,
		CredentialOptions: []domain.CredentialType{
			domain.CredentialTypeOpenAI,
		},
		NewBubble: NewBubble,
	}
}

type Params struct {
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Message      string  `json:"message"`
	Temperature  float32 `json:"temperature"`
}

type Bubble struct {
	client *openai.Client
	params Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	apiKey, ok := p.Credentials[domain.CredentialTypeOpenAI]
	if !ok {
		return nil, fmt.Errorf("ai agent bubble requires a %s credential", domain.CredentialTypeOpenAI)
	}

	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind ai agent params: %w", err)
	}

	if params.Model == "" {
		params.Model = defaultModel
	}

	return &Bubble{
		client: openai.NewClient(apiKey),
		params: params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	messages := []openai.ChatCompletionMessage{}
	if b.params.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: b.params.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: b.params.Message,
	})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.params.Model,
		Messages:    messages,
		Temperature: b.params.Temperature,
	})
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("chat completion failed: %s", err),
		}, nil
	}

	if len(resp.Choices) == 0 {
		return domain.BubbleActionResult{
			Success: false,
			Error:   "chat completion returned no choices",
		}, nil
	}

	return domain.BubbleActionResult{
		Success: true,
		Data: map[string]any{
			"response": resp.Choices[0].Message.Content,
			"model":    resp.Model,
			"tokens":   resp.Usage.TotalTokens,
		},
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "openai", Unit: "tokens", Units: int64(resp.Usage.TotalTokens)},
		},
	}, nil
}
