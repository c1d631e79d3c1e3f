// Package initialization wires the process dependencies: stores, the bubble
// registry, quota components and the flow service.
package initialization

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/internal/storage/memory"
	"github.com/bubblelabai/bubblelab/internal/storage/postgres"
	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/quota"
	"github.com/bubblelabai/bubblelab/pkg/registry"
	"github.com/bubblelabai/bubblelab/pkg/runtime"

	"github.com/rs/zerolog/log"
)

type Config struct {
	HTTPPort    int
	DatabaseURL string
}

// Container holds every long-lived dependency for one process. Built once at
// startup, shared by the HTTP server and CLI commands.
type Container struct {
	Config            Config
	Registry          *registry.Registry
	SystemCredentials domain.SystemCredentials
	FlowService       *runtime.FlowService

	closers []func()
}

func NewContainer(ctx context.Context, config Config) (*Container, error) {
	reg := registry.NewRegistry()
	if err := RegisterBubbles(reg); err != nil {
		return nil, fmt.Errorf("failed to register bubbles: %w", err)
	}

	systemCredentials := domain.LoadSystemCredentials()
	log.Info().
		Int("bubbles", len(reg.List())).
		Int("system_credentials", len(systemCredentials)).
		Msg("bubble catalog initialized")

	container := &Container{
		Config:            config,
		Registry:          reg,
		SystemCredentials: systemCredentials,
	}

	var (
		usageStore      domain.UsageStore
		credentialStore domain.CredentialStore
		accountStore    domain.AccountStore
	)

	if config.DatabaseURL != "" {
		store, err := postgres.NewStore(ctx, config.DatabaseURL)
		if err != nil {
			return nil, err
		}

		container.closers = append(container.closers, store.Close)
		usageStore, credentialStore, accountStore = store, store, store
	} else {
		log.Warn().Msg("no database configured, using in-memory stores")

		store := memory.NewStore()
		usageStore, credentialStore, accountStore = store, store, store
	}

	gate := quota.NewGate(quota.GateDeps{
		UsageStore:   usageStore,
		AccountStore: accountStore,
	})
	accountant := quota.NewAccountant(quota.AccountantDeps{
		UsageStore: usageStore,
	})

	container.FlowService = runtime.NewFlowService(runtime.FlowServiceDeps{
		Registry:          reg,
		CredentialStore:   credentialStore,
		SystemCredentials: systemCredentials,
		Gate:              gate,
		Accountant:        accountant,
	})

	return container, nil
}

func (c *Container) Close() {
	for _, closer := range c.closers {
		closer()
	}
}
