package controllers

import (
	"sort"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/gofiber/fiber/v2"
)

type BubbleControllerDependencies struct {
	Registry domain.BubbleRegistry
}

type BubbleController struct {
	registry domain.BubbleRegistry
}

func NewBubbleController(deps BubbleControllerDependencies) *BubbleController {
	return &BubbleController{
		registry: deps.Registry,
	}
}

// BubbleInfo is the catalog view of one bubble. Factories and compiled
// schemas stay internal; the raw schema document is exposed for tooling.
type BubbleInfo struct {
	Name               string   `json:"name"`
	ClassName          string   `json:"class_name"`
	Alias              string   `json:"alias,omitempty"`
	Category           string   `json:"category"`
	ShortDescription   string   `json:"short_description,omitempty"`
	ParamsSchema       string   `json:"params_schema,omitempty"`
	CredentialOptions  []string `json:"credential_options,omitempty"`
	CredentialOptional bool     `json:"credential_optional"`
}

// ListBubbles returns the registered bubble catalog sorted by name.
func (c *BubbleController) ListBubbles(ctx *fiber.Ctx) error {
	defs := c.registry.List()

	infos := make([]BubbleInfo, 0, len(defs))
	for _, def := range defs {
		credentialOptions := make([]string, 0, len(def.CredentialOptions))
		for _, credType := range def.CredentialOptions {
			credentialOptions = append(credentialOptions, string(credType))
		}

		infos = append(infos, BubbleInfo{
			Name:               string(def.Name),
			ClassName:          def.ClassName,
			Alias:              def.Alias,
			Category:           string(def.Category),
			ShortDescription:   def.ShortDescription,
			ParamsSchema:       def.ParamsSchema,
			CredentialOptions:  credentialOptions,
			CredentialOptional: def.CredentialOptional,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
		"bubbles": infos,
	})
}
