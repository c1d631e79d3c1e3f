package domain

import "os"

type CredentialType string

const (
	CredentialTypeResend   CredentialType = "RESEND_CRED"
	CredentialTypeSlack    CredentialType = "SLACK_CRED"
	CredentialTypeTelegram CredentialType = "TELEGRAM_CRED"
	CredentialTypeDatabase CredentialType = "DATABASE_CRED"
	CredentialTypeRedis    CredentialType = "REDIS_CRED"
	CredentialTypeOpenAI   CredentialType = "OPENAI_CRED"
)

// SystemCredentialEnvVars is the fixed mapping from credential type to the
// environment variable a system-level fallback secret is read from. Resolved
// once at process start.
var SystemCredentialEnvVars = map[CredentialType]string{
	CredentialTypeResend:   "RESEND_API_KEY",
	CredentialTypeSlack:    "SLACK_BOT_TOKEN",
	CredentialTypeTelegram: "TELEGRAM_BOT_TOKEN",
	CredentialTypeDatabase: "SYSTEM_DATABASE_URL",
	CredentialTypeRedis:    "SYSTEM_REDIS_URL",
	CredentialTypeOpenAI:   "OPENAI_API_KEY",
}

// ServiceByCredentialType maps a credential type to the billable service key
// used in pricing tables and service-usage rows.
var ServiceByCredentialType = map[CredentialType]string{
	CredentialTypeResend:   "resend",
	CredentialTypeSlack:    "slack",
	CredentialTypeTelegram: "telegram",
	CredentialTypeDatabase: "postgresql",
	CredentialTypeRedis:    "redis",
	CredentialTypeOpenAI:   "openai",
}

// UserCredential is one user-owned secret. A credential is either scoped to a
// single bubble instantiation (BubbleVariableID set) or unscoped, applying to
// any instantiation requiring its type. Looked up fresh for every execution
// so revocations take effect immediately.
type UserCredential struct {
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
	Type   CredentialType `json:"credential_type"`

	// Secret never serializes. It is read by the injector and handed to
	// bubble factories only.
	Secret string `json:"-"`

	BubbleVariableID *int `json:"bubble_variable_id,omitempty"`
}

// SystemCredentials holds the process-wide fallback secrets keyed by
// credential type. Read-only after load.
type SystemCredentials map[CredentialType]string

// LoadSystemCredentials reads the fixed environment mapping. Missing
// variables simply leave the type without a system fallback.
func LoadSystemCredentials() SystemCredentials {
	creds := SystemCredentials{}

	for credType, envVar := range SystemCredentialEnvVars {
		if value := os.Getenv(envVar); value != "" {
			creds[credType] = value
		}
	}

	return creds
}

// InjectedCredential describes, for observability, which credential was
// chosen for one instantiation. The secret value itself is never part of
// this struct.
type InjectedCredential struct {
	VariableID       int            `json:"variable_id"`
	CredentialType   CredentialType `json:"credential_type"`
	CredentialID     string         `json:"credential_id,omitempty"`
	IsUserCredential bool           `json:"is_user_credential"`
}

// InjectionResult is the externally visible outcome of credential injection
// for one execution. All-or-nothing: any unresolvable required credential
// makes Success false and the run never starts.
type InjectionResult struct {
	Success  bool                       `json:"success"`
	Injected map[int]InjectedCredential `json:"injected"`
	Errors   []string                   `json:"errors,omitempty"`
}

// SystemServices returns the billable service keys backed by system
// credentials in this injection, for credit-quota reporting.
func (r InjectionResult) SystemServices() []string {
	services := []string{}
	seen := map[string]struct{}{}

	for _, injected := range r.Injected {
		if injected.IsUserCredential {
			continue
		}

		service, ok := ServiceByCredentialType[injected.CredentialType]
		if !ok {
			service = string(injected.CredentialType)
		}

		if _, dup := seen[service]; dup {
			continue
		}

		seen[service] = struct{}{}
		services = append(services, service)
	}

	return services
}
