// Package http implements the generic HTTP request bubble. It is the one
// bubble that runs without credentials.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/domain"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]},
		"url": {"type": "string", "minLength": 1},
		"headers": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"body": {}
	},
	"required": ["url"]
}`

const (
	requestTimeout  = 30 * time.Second
	maxResponseSize = 4 << 20
)

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:               domain.BubbleName_HTTP,
		ClassName:          "HTTPBubble",
		Alias:              "http",
		Category:           domain.BubbleCategoryService,
		ShortDescription:   "Make an HTTP request",
		ParamsSchema:       paramsSchema,
		CredentialOptional: true,
		NewBubble:          NewBubble,
	}
}

type Params struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

type Bubble struct {
	client *http.Client
	params Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind http params: %w", err)
	}

	if params.Method == "" {
		params.Method = http.MethodGet
	}

	return &Bubble{
		client: &http.Client{Timeout: requestTimeout},
		params: params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	var body io.Reader
	if b.params.Body != nil {
		raw, err := json.Marshal(b.params.Body)
		if err != nil {
			return domain.BubbleActionResult{
				Success: false,
				Error:   "failed to encode request body",
			}, nil
		}

		body = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, b.params.Method, b.params.URL, body)
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %s", err),
		}, nil
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range b.params.Headers {
		req.Header.Set(key, value)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("request failed: %s", err),
		}, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("failed to read response: %s", err),
		}, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	return domain.BubbleActionResult{
		Success: resp.StatusCode < 400,
		Data: map[string]any{
			"status": resp.StatusCode,
			"body":   decoded,
		},
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "http", Unit: "requests", Units: 1},
		},
	}, nil
}
