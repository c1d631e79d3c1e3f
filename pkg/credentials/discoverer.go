// Package credentials implements credential discovery for parsed scripts,
// injection of resolved secrets into bubble construction, and sanitization
// of anything that crosses the execution boundary.
package credentials

import (
	"sort"

	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/script"
)

// FindCredentials maps every bubble instantiation to the credential types it
// may authenticate with, resolved against the registry. All declared options
// are surfaced; choosing among them is deferred to injection time.
//
// Pure function of the model and registry: no I/O, deterministic, idempotent.
func FindCredentials(model *script.ScriptModel, registry domain.BubbleRegistry) map[int][]domain.CredentialType {
	requirements := map[int][]domain.CredentialType{}

	for _, inst := range model.Instantiations {
		def, ok := registry.Get(inst.BubbleName)
		if !ok {
			continue
		}

		if len(def.CredentialOptions) == 0 {
			continue
		}

		options := make([]domain.CredentialType, len(def.CredentialOptions))
		copy(options, def.CredentialOptions)

		sort.Slice(options, func(i, j int) bool { return options[i] < options[j] })

		requirements[inst.VariableID] = options
	}

	return requirements
}
