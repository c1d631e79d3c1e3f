package domain

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrBubbleNotFound = errors.New("bubble not found")
)

type BubbleName string
type BubbleCategory string

const (
	BubbleCategoryService  BubbleCategory = "service"
	BubbleCategoryWorkflow BubbleCategory = "workflow"
)

const (
	BubbleName_Resend     BubbleName = "resend"
	BubbleName_Slack      BubbleName = "slack"
	BubbleName_Telegram   BubbleName = "telegram"
	BubbleName_PostgreSQL BubbleName = "postgresql"
	BubbleName_Redis      BubbleName = "redis"
	BubbleName_HTTP       BubbleName = "http"
	BubbleName_AIAgent    BubbleName = "ai_agent"
)

// BubbleDefinition is a registry entry describing one bubble: the class name
// workflow scripts instantiate it by, the credential options it accepts and
// the JSON schema its constructor parameters are validated against.
type BubbleDefinition struct {
	Name             BubbleName
	ClassName        string
	Alias            string
	Category         BubbleCategory
	ShortDescription string
	LongDescription  string

	// ParamsSchema is a JSON schema document for the constructor parameters.
	// Compiled once at registration time.
	ParamsSchema string

	// CredentialOptions lists the credential types this bubble can
	// authenticate with. Empty together with CredentialOptional means the
	// bubble runs unauthenticated.
	CredentialOptions  []CredentialType
	CredentialOptional bool

	NewBubble BubbleFactory
}

// RequiresCredential reports whether an instantiation of this bubble must
// have a credential resolved before it is allowed to run.
func (d BubbleDefinition) RequiresCredential() bool {
	return len(d.CredentialOptions) > 0 && !d.CredentialOptional
}

type BubbleFactory func(ctx context.Context, p NewBubbleParams) (Bubble, error)

type NewBubbleParams struct {
	VariableID int
	Params     map[string]any

	// Credentials carries the resolved secret values keyed by credential
	// type. Secrets are only ever visible to the bubble implementation,
	// never to the workflow script or any streamed event.
	Credentials map[CredentialType]string
}

// Bubble is one live, credential-injected integration instance. Action is the
// uniform operation contract every bubble exposes.
type Bubble interface {
	Action(ctx context.Context) (BubbleActionResult, error)
}

type BubbleActionResult struct {
	Success      bool                 `json:"success"`
	Data         any                  `json:"data,omitempty"`
	Error        string               `json:"error,omitempty"`
	ServiceUsage []ServiceUsageRecord `json:"service_usage,omitempty"`
}

// ServiceUsageRecord is one unit-count entry emitted by a bubble as it
// completes, priced by the pricing table and later persisted by the
// accountant.
type ServiceUsageRecord struct {
	Service          string  `json:"service"`
	Unit             string  `json:"unit"`
	Units            int64   `json:"units"`
	CostUSD          float64 `json:"cost_usd"`
	BubbleName       string  `json:"bubble_name,omitempty"`
	IsUserCredential bool    `json:"is_user_credential"`
}

// BubbleRegistry is the read-only catalog shared by every execution. It is
// populated once at process start and safe for concurrent reads.
type BubbleRegistry interface {
	Get(name BubbleName) (BubbleDefinition, bool)
	GetByClassName(className string) (BubbleDefinition, bool)
	List() []BubbleDefinition
	ValidateParams(name BubbleName, params map[string]any) error
}

// BindParams decodes loosely typed bubble parameters into a typed params
// struct via a JSON round trip.
func BindParams(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}
