package credentials_test

import (
	"encoding/json"
	"testing"

	"github.com/bubblelabai/bubblelab/pkg/credentials"
	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/registry"
	"github.com/bubblelabai/bubblelab/pkg/script"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry()

	defs := []domain.BubbleDefinition{
		{
			Name:              "mail",
			ClassName:         "MailBubble",
			CredentialOptions: []domain.CredentialType{domain.CredentialTypeResend},
		},
		{
			Name:      "fetch",
			ClassName: "FetchBubble",
			CredentialOptions: []domain.CredentialType{
				domain.CredentialTypeOpenAI,
			},
			CredentialOptional: true,
		},
		{
			Name:      "plain",
			ClassName: "PlainBubble",
		},
	}

	for _, def := range defs {
		require.NoError(t, reg.Register(def))
	}

	return reg
}

func parseModel(t *testing.T, source string) *script.ScriptModel {
	t.Helper()

	model, err := script.Parse(source, testRegistry(t))
	require.NoError(t, err)

	return model
}

const discoverySource = `
class DiscoveryFlow extends BubbleFlow {
	handle(payload) {
		const m = new MailBubble({ subject: "a" });
		const p = new PlainBubble({});
		const f = new FetchBubble({});
		return null;
	}
}`

func TestFindCredentials_MapsRequiringInstantiations(t *testing.T) {
	model := parseModel(t, discoverySource)

	requirements := credentials.FindCredentials(model, testRegistry(t))

	require.Len(t, requirements, 2)
	assert.Equal(t, []domain.CredentialType{domain.CredentialTypeResend}, requirements[1])
	assert.Equal(t, []domain.CredentialType{domain.CredentialTypeOpenAI}, requirements[3])

	_, hasPlain := requirements[2]
	assert.False(t, hasPlain, "credential-free bubbles have no requirements entry")
}

func TestFindCredentials_IsDeterministic(t *testing.T) {
	model := parseModel(t, discoverySource)
	reg := testRegistry(t)

	first := credentials.FindCredentials(model, reg)
	second := credentials.FindCredentials(model, reg)

	assert.Equal(t, first, second)
}

func TestInject_PrecedenceOrder(t *testing.T) {
	model := parseModel(t, discoverySource)
	reg := testRegistry(t)
	requirements := credentials.FindCredentials(model, reg)

	scopedVariable := 1

	tests := []struct {
		name            string
		userCredentials []domain.UserCredential
		system          domain.SystemCredentials
		wantSecret      string
		wantUserBacked  bool
	}{
		{
			name: "variable scoped user credential wins",
			userCredentials: []domain.UserCredential{
				{ID: "c1", Type: domain.CredentialTypeResend, Secret: "unscoped-secret"},
				{ID: "c2", Type: domain.CredentialTypeResend, Secret: "scoped-secret", BubbleVariableID: &scopedVariable},
			},
			system:         domain.SystemCredentials{domain.CredentialTypeResend: "system-secret"},
			wantSecret:     "scoped-secret",
			wantUserBacked: true,
		},
		{
			name: "unscoped user credential beats system",
			userCredentials: []domain.UserCredential{
				{ID: "c1", Type: domain.CredentialTypeResend, Secret: "unscoped-secret"},
			},
			system:         domain.SystemCredentials{domain.CredentialTypeResend: "system-secret"},
			wantSecret:     "unscoped-secret",
			wantUserBacked: true,
		},
		{
			name:           "system credential is the fallback",
			system:         domain.SystemCredentials{domain.CredentialTypeResend: "system-secret"},
			wantSecret:     "system-secret",
			wantUserBacked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, bindings := credentials.Inject(credentials.InjectParams{
				Model:             model,
				Requirements:      requirements,
				UserCredentials:   tt.userCredentials,
				SystemCredentials: tt.system,
				Registry:          reg,
			})

			require.True(t, result.Success)
			assert.Equal(t, tt.wantUserBacked, result.Injected[1].IsUserCredential)
			assert.Equal(t, tt.wantSecret, bindings[1][domain.CredentialTypeResend])
		})
	}
}

func TestInject_AllOrNothing(t *testing.T) {
	source := `
class TwoMailFlow extends BubbleFlow {
	handle(payload) {
		const a = new MailBubble({ subject: "a" });
		const b = new MailBubble({ subject: "b" });
		return null;
	}
}`

	model := parseModel(t, source)
	reg := testRegistry(t)
	requirements := credentials.FindCredentials(model, reg)

	firstVariable := 1
	result, bindings := credentials.Inject(credentials.InjectParams{
		Model:        model,
		Requirements: requirements,
		UserCredentials: []domain.UserCredential{
			// Scoped to variable 1 only; variable 2 stays unresolved.
			{ID: "c1", Type: domain.CredentialTypeResend, Secret: "scoped-secret", BubbleVariableID: &firstVariable},
		},
		SystemCredentials: domain.SystemCredentials{},
		Registry:          reg,
	})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "variable 2")
	assert.Empty(t, result.Injected, "partial injections are discarded")
	assert.Empty(t, bindings, "no secrets leave a failed injection")
}

func TestInject_OptionalCredentialMaySkip(t *testing.T) {
	source := `
class OptionalFlow extends BubbleFlow {
	handle(payload) {
		const f = new FetchBubble({});
		return null;
	}
}`

	model := parseModel(t, source)
	reg := testRegistry(t)

	result, bindings := credentials.Inject(credentials.InjectParams{
		Model:             model,
		Requirements:      credentials.FindCredentials(model, reg),
		SystemCredentials: domain.SystemCredentials{},
		Registry:          reg,
	})

	assert.True(t, result.Success)
	assert.Empty(t, result.Injected)
	assert.Empty(t, bindings)
}

func TestInjectionResult_NeverSerializesSecrets(t *testing.T) {
	model := parseModel(t, discoverySource)
	reg := testRegistry(t)

	result, _ := credentials.Inject(credentials.InjectParams{
		Model:        model,
		Requirements: credentials.FindCredentials(model, reg),
		UserCredentials: []domain.UserCredential{
			{ID: "c1", Type: domain.CredentialTypeResend, Secret: "super-secret-value"},
		},
		SystemCredentials: domain.SystemCredentials{domain.CredentialTypeOpenAI: "sk-system-value"},
		Registry:          reg,
	})
	require.True(t, result.Success)

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "super-secret-value")
	assert.NotContains(t, string(raw), "sk-system-value")
}

func TestSanitizer_RedactsEverySecret(t *testing.T) {
	sanitizer := credentials.NewExecutionSanitizer(
		[]domain.UserCredential{
			{ID: "c1", Type: domain.CredentialTypeResend, Secret: "re_live_abc123"},
		},
		domain.SystemCredentials{
			domain.CredentialTypeOpenAI: "sk-proj-xyz789",
		},
	)

	message := "request failed: key re_live_abc123 rejected, retried with sk-proj-xyz789"
	sanitized := sanitizer.Sanitize(message)

	assert.NotContains(t, sanitized, "re_live_abc123")
	assert.NotContains(t, sanitized, "sk-proj-xyz789")
	assert.Contains(t, sanitized, "[REDACTED]")
}

func TestSanitizer_IgnoresShortValues(t *testing.T) {
	sanitizer := credentials.NewSanitizer()
	sanitizer.Add("ab")

	assert.Equal(t, "abort the mission", sanitizer.Sanitize("abort the mission"))
}
