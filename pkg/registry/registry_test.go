package registry_test

import (
	"testing"

	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mailSchema = `{
	"type": "object",
	"properties": {
		"to": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"subject": {"type": "string"},
		"retries": {"type": "integer", "minimum": 0}
	},
	"required": ["to", "subject"]
}`

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(domain.BubbleDefinition{
		Name:         "mail",
		ClassName:    "MailBubble",
		ParamsSchema: mailSchema,
	}))

	return reg
}

func TestRegistry_LookupByNameAndClassName(t *testing.T) {
	reg := newTestRegistry(t)

	byName, ok := reg.Get("mail")
	require.True(t, ok)
	assert.Equal(t, "MailBubble", byName.ClassName)

	byClass, ok := reg.GetByClassName("MailBubble")
	require.True(t, ok)
	assert.Equal(t, domain.BubbleName("mail"), byClass.Name)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.Register(domain.BubbleDefinition{Name: "mail", ClassName: "OtherBubble"})
	assert.Error(t, err)

	err = reg.Register(domain.BubbleDefinition{Name: "other", ClassName: "MailBubble"})
	assert.Error(t, err)
}

func TestRegistry_RejectsInvalidSchema(t *testing.T) {
	reg := registry.NewRegistry()

	err := reg.Register(domain.BubbleDefinition{
		Name:         "broken",
		ClassName:    "BrokenBubble",
		ParamsSchema: `{"type": ???}`,
	})
	assert.Error(t, err)
}

func TestRegistry_ValidateParams(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{
			name:   "valid params",
			params: map[string]any{"to": []any{"a@b.c"}, "subject": "hi"},
		},
		{
			name:   "integer params pass as native ints",
			params: map[string]any{"to": []any{"a@b.c"}, "subject": "hi", "retries": 3},
		},
		{
			name:    "missing required field",
			params:  map[string]any{"subject": "hi"},
			wantErr: true,
		},
		{
			name:    "wrong type",
			params:  map[string]any{"to": "a@b.c", "subject": "hi"},
			wantErr: true,
		},
		{
			name:    "nil params fail required checks",
			params:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.ValidateParams("mail", tt.params)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_ValidateParamsWithoutSchemaAcceptsAnything(t *testing.T) {
	reg := registry.NewRegistry()
	require.NoError(t, reg.Register(domain.BubbleDefinition{Name: "free", ClassName: "FreeBubble"}))

	assert.NoError(t, reg.ValidateParams("free", map[string]any{"anything": true}))
	assert.NoError(t, reg.ValidateParams("unknown", nil))
}
