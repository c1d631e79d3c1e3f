// Package redis implements the Redis command bubble.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	redisclient "github.com/redis/go-redis/v9"
)

const paramsSchema = `{
	"type": "object",
	"properties": {
		"operation": {"type": "string", "enum": ["get", "set", "del", "incr"]},
		"key": {"type": "string", "minLength": 1},
		"value": {},
		"ttl_seconds": {"type": "integer", "minimum": 0}
	},
	"required": ["operation", "key"]
}`

func Definition() domain.BubbleDefinition {
	return domain.BubbleDefinition{
		Name:             domain.BubbleName_Redis,
		ClassName:        "RedisBubble",
		Alias:            "redis",
		Category:         domain.BubbleCategoryService,
		ShortDescription: "Run a command against a Redis instance",
		ParamsSchema:     paramsSchema,
		CredentialOptions: []domain.CredentialType{
			domain.CredentialTypeRedis,
		},
		NewBubble: NewBubble,
	}
}

type Params struct {
	Operation  string `json:"operation"`
	Key        string `json:"key"`
	Value      any    `json:"value"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type Bubble struct {
	client *redisclient.Client
	params Params
}

func NewBubble(ctx context.Context, p domain.NewBubbleParams) (domain.Bubble, error) {
	redisURL, ok := p.Credentials[domain.CredentialTypeRedis]
	if !ok {
		return nil, fmt.Errorf("redis bubble requires a %s credential", domain.CredentialTypeRedis)
	}

	var params Params
	if err := domain.BindParams(p.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to bind redis params: %w", err)
	}

	opts, err := redisclient.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis connection url")
	}

	return &Bubble{
		client: redisclient.NewClient(opts),
		params: params,
	}, nil
}

func (b *Bubble) Action(ctx context.Context) (domain.BubbleActionResult, error) {
	defer b.client.Close()

	var (
		data any
		err  error
	)

	switch b.params.Operation {
	case "get":
		var value string
		value, err = b.client.Get(ctx, b.params.Key).Result()
		if err == redisclient.Nil {
			data, err = nil, nil
		} else {
			data = value
		}
	case "set":
		ttl := time.Duration(b.params.TTLSeconds) * time.Second
		err = b.client.Set(ctx, b.params.Key, fmt.Sprintf("%v", b.params.Value), ttl).Err()
		data = "OK"
	case "del":
		data, err = b.client.Del(ctx, b.params.Key).Result()
	case "incr":
		data, err = b.client.Incr(ctx, b.params.Key).Result()
	default:
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("unsupported redis operation: %s", b.params.Operation),
		}, nil
	}

	if err != nil {
		return domain.BubbleActionResult{
			Success: false,
			Error:   fmt.Sprintf("redis %s failed: %s", b.params.Operation, err),
		}, nil
	}

	return domain.BubbleActionResult{
		Success: true,
		Data: map[string]any{
			"result": data,
		},
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "redis", Unit: "commands", Units: 1},
		},
	}, nil
}
