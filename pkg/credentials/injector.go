package credentials

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/script"
)

// SecretBindings carries the resolved secret values per variable id. It is
// handed to the runner only and must never be serialized or logged.
type SecretBindings map[int]map[domain.CredentialType]string

type InjectParams struct {
	Model             *script.ScriptModel
	Requirements      map[int][]domain.CredentialType
	UserCredentials   []domain.UserCredential
	SystemCredentials domain.SystemCredentials
	Registry          domain.BubbleRegistry
}

// Inject resolves one credential per requiring instantiation. Resolution
// order: variable-scoped user credential, unscoped user credential, system
// credential. Injection is all-or-nothing: any missing required credential
// fails the whole result and no secret bindings are returned.
func Inject(p InjectParams) (domain.InjectionResult, SecretBindings) {
	result := domain.InjectionResult{
		Success:  true,
		Injected: map[int]domain.InjectedCredential{},
	}
	bindings := SecretBindings{}

	variableIDs := make([]int, 0, len(p.Requirements))
	for variableID := range p.Requirements {
		variableIDs = append(variableIDs, variableID)
	}
	sort.Ints(variableIDs)

	for _, variableID := range variableIDs {
		required := p.Requirements[variableID]

		injected, secret, found := resolve(variableID, required, p.UserCredentials, p.SystemCredentials)
		if !found {
			if !isRequired(p.Model, p.Registry, variableID) {
				continue
			}

			result.Errors = append(result.Errors, fmt.Sprintf(
				"no credential found for variable %d: requires one of [%s]",
				variableID, joinTypes(required)))

			continue
		}

		result.Injected[variableID] = injected

		if _, ok := bindings[variableID]; !ok {
			bindings[variableID] = map[domain.CredentialType]string{}
		}
		bindings[variableID][injected.CredentialType] = secret
	}

	if len(result.Errors) > 0 {
		result.Success = false
		result.Injected = map[int]domain.InjectedCredential{}

		return result, SecretBindings{}
	}

	return result, bindings
}

func resolve(
	variableID int,
	required []domain.CredentialType,
	userCredentials []domain.UserCredential,
	systemCredentials domain.SystemCredentials,
) (domain.InjectedCredential, string, bool) {
	// Variable-scoped user credentials take precedence over unscoped ones.
	for _, cred := range userCredentials {
		if cred.BubbleVariableID == nil || *cred.BubbleVariableID != variableID {
			continue
		}

		if !containsType(required, cred.Type) {
			continue
		}

		return domain.InjectedCredential{
			VariableID:       variableID,
			CredentialType:   cred.Type,
			CredentialID:     cred.ID,
			IsUserCredential: true,
		}, cred.Secret, true
	}

	for _, cred := range userCredentials {
		if cred.BubbleVariableID != nil {
			continue
		}

		if !containsType(required, cred.Type) {
			continue
		}

		return domain.InjectedCredential{
			VariableID:       variableID,
			CredentialType:   cred.Type,
			CredentialID:     cred.ID,
			IsUserCredential: true,
		}, cred.Secret, true
	}

	for _, credType := range required {
		secret, ok := systemCredentials[credType]
		if !ok {
			continue
		}

		return domain.InjectedCredential{
			VariableID:       variableID,
			CredentialType:   credType,
			IsUserCredential: false,
		}, secret, true
	}

	return domain.InjectedCredential{}, "", false
}

func isRequired(model *script.ScriptModel, registry domain.BubbleRegistry, variableID int) bool {
	for _, inst := range model.Instantiations {
		if inst.VariableID != variableID {
			continue
		}

		def, ok := registry.Get(inst.BubbleName)
		if !ok {
			return false
		}

		return def.RequiresCredential()
	}

	return false
}

func containsType(types []domain.CredentialType, t domain.CredentialType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}

	return false
}

func joinTypes(types []domain.CredentialType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	return strings.Join(names, ", ")
}
