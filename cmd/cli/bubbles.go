package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bubblelabai/bubblelab/internal/initialization"
	"github.com/bubblelabai/bubblelab/pkg/registry"

	"github.com/spf13/cobra"
)

func NewBubblesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bubbles",
		Short: "List the registered bubble catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.NewRegistry()
			if err := initialization.RegisterBubbles(reg); err != nil {
				return err
			}

			defs := reg.List()
			sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

			for _, def := range defs {
				credentials := "none"
				if len(def.CredentialOptions) > 0 {
					names := make([]string, len(def.CredentialOptions))
					for i, credType := range def.CredentialOptions {
						names[i] = string(credType)
					}

					credentials = strings.Join(names, ", ")
					if def.CredentialOptional {
						credentials += " (optional)"
					}
				}

				fmt.Printf("%-12s %-18s credentials: %s\n", def.Name, def.ClassName, credentials)
			}

			return nil
		},
	}
}
