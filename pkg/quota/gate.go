// Package quota enforces monthly execution-count and credit limits before a
// workflow runs, and records usage after it completes.
package quota

import (
	"context"
	"fmt"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/rs/zerolog/log"
)

type GateDeps struct {
	UsageStore   domain.UsageStore
	AccountStore domain.AccountStore
	Now          NowFunc
}

// Gate evaluates quota against the prior committed usage state. A single
// execution is atomic with respect to quota: it either proceeds in full or
// is rejected before any bubble runs.
type Gate struct {
	usageStore   domain.UsageStore
	accountStore domain.AccountStore
	now          NowFunc
}

func NewGate(deps GateDeps) *Gate {
	now := deps.Now
	if now == nil {
		now = defaultNow
	}

	return &Gate{
		usageStore:   deps.UsageStore,
		accountStore: deps.AccountStore,
		now:          now,
	}
}

// PeriodKey resolves the user's current billing period from their anchor
// date.
func (g *Gate) PeriodKey(ctx context.Context, userID string) (string, error) {
	anchor, err := g.accountStore.GetBillingAnchor(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve billing anchor for user %s: %w", userID, err)
	}

	return domain.BillingPeriodKey(anchor, g.now()), nil
}

// CheckExecutionCount rejects when the monthly execution limit is already
// met or exceeded. Evaluated before credential injection, unconditionally.
func (g *Gate) CheckExecutionCount(ctx context.Context, userID string, periodKey string) error {
	limits, usage, err := g.load(ctx, userID, periodKey)
	if err != nil {
		return err
	}

	if usage.ExecutionCount >= limits.MonthlyExecutions {
		log.Info().
			Str("user_id", userID).
			Str("period", periodKey).
			Int("executions", usage.ExecutionCount).
			Msg("execution count quota exceeded")

		return &domain.QuotaExceededError{
			Kind:  domain.QuotaKindExecutions,
			Used:  float64(usage.ExecutionCount),
			Limit: float64(limits.MonthlyExecutions),
		}
	}

	return nil
}

// CheckCredits rejects when system credentials were injected and the user's
// credit usage already meets their limit. Evaluated after injection so the
// error can name the system-backed services, but strictly before any bubble
// runs.
func (g *Gate) CheckCredits(ctx context.Context, userID string, periodKey string, systemServices []string) error {
	if len(systemServices) == 0 {
		return nil
	}

	limits, usage, err := g.load(ctx, userID, periodKey)
	if err != nil {
		return err
	}

	if usage.CreditsUsedUSD >= limits.MonthlyCreditsUSD {
		log.Info().
			Str("user_id", userID).
			Str("period", periodKey).
			Float64("credits_used", usage.CreditsUsedUSD).
			Strs("services", systemServices).
			Msg("credit quota exceeded")

		return &domain.QuotaExceededError{
			Kind:     domain.QuotaKindCredits,
			Used:     usage.CreditsUsedUSD,
			Limit:    limits.MonthlyCreditsUSD,
			Services: systemServices,
		}
	}

	return nil
}

func (g *Gate) load(ctx context.Context, userID string, periodKey string) (domain.PlanLimits, domain.UsageSnapshot, error) {
	limits, err := g.accountStore.GetPlanLimits(ctx, userID)
	if err != nil {
		return domain.PlanLimits{}, domain.UsageSnapshot{}, fmt.Errorf("failed to resolve plan limits for user %s: %w", userID, err)
	}

	usage, err := g.usageStore.GetUsage(ctx, userID, periodKey)
	if err != nil {
		return domain.PlanLimits{}, domain.UsageSnapshot{}, fmt.Errorf("failed to load usage for user %s: %w", userID, err)
	}

	return limits, usage, nil
}
