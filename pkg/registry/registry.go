// Package registry holds the process-wide bubble catalog. It is populated
// once at startup and read concurrently by every execution afterwards.
package registry

import (
	"fmt"
	"sync"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Registry struct {
	mu          sync.RWMutex
	byName      map[domain.BubbleName]domain.BubbleDefinition
	byClassName map[string]domain.BubbleDefinition
	schemas     map[domain.BubbleName]*jsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{
		byName:      map[domain.BubbleName]domain.BubbleDefinition{},
		byClassName: map[string]domain.BubbleDefinition{},
		schemas:     map[domain.BubbleName]*jsonschema.Schema{},
	}
}

// Register adds a definition and compiles its parameter schema. Duplicate
// names or class names are a bootstrap bug and rejected outright.
func (r *Registry) Register(def domain.BubbleDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" || def.ClassName == "" {
		return fmt.Errorf("bubble definition requires a name and a class name")
	}

	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("bubble %q already registered", def.Name)
	}

	if _, exists := r.byClassName[def.ClassName]; exists {
		return fmt.Errorf("bubble class %q already registered", def.ClassName)
	}

	if def.ParamsSchema != "" {
		schema, err := jsonschema.CompileString(string(def.Name)+".schema.json", def.ParamsSchema)
		if err != nil {
			return fmt.Errorf("failed to compile params schema for bubble %q: %w", def.Name, err)
		}

		r.schemas[def.Name] = schema
	}

	r.byName[def.Name] = def
	r.byClassName[def.ClassName] = def

	return nil
}

func (r *Registry) Get(name domain.BubbleName) (domain.BubbleDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byName[name]

	return def, ok
}

func (r *Registry) GetByClassName(className string) (domain.BubbleDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byClassName[className]

	return def, ok
}

func (r *Registry) List() []domain.BubbleDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.BubbleDefinition, 0, len(r.byName))
	for _, def := range r.byName {
		defs = append(defs, def)
	}

	return defs
}

// ValidateParams checks constructor parameters against the bubble's compiled
// schema. Bubbles without a schema accept anything.
func (r *Registry) ValidateParams(name domain.BubbleName, params map[string]any) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	if err := schema.Validate(normalizeForSchema(params)); err != nil {
		return fmt.Errorf("invalid parameters for bubble %q: %w", name, err)
	}

	return nil
}

// normalizeForSchema converts parameter values to the plain JSON value
// types the schema validator expects.
func normalizeForSchema(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeForSchema(item)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeForSchema(item)
		}

		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}
