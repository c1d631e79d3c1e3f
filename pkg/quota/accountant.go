package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/rs/zerolog/log"
)

type NowFunc func() time.Time

func defaultNow() time.Time { return time.Now().UTC() }

type AccountantDeps struct {
	UsageStore domain.UsageStore
}

// Accountant persists usage after a successful execution: per-service usage
// rows, the credit delta for system-backed services, and the atomic
// execution-counter increment. Invoked at most once per execution by the
// flow service; it never runs for failed or rejected executions.
type Accountant struct {
	usageStore domain.UsageStore
}

func NewAccountant(deps AccountantDeps) *Accountant {
	return &Accountant{
		usageStore: deps.UsageStore,
	}
}

type RecordExecutionParams struct {
	UserID       string
	PeriodKey    string
	ExecutionID  int64
	ServiceUsage []domain.ServiceUsageRecord
}

func (a *Accountant) RecordExecution(ctx context.Context, p RecordExecutionParams) error {
	// Only usage billed against system credentials consumes the user's
	// credit balance; calls through their own credentials cost us nothing.
	creditsUsed := 0.0
	for _, usage := range p.ServiceUsage {
		if !usage.IsUserCredential {
			creditsUsed += usage.CostUSD
		}
	}

	err := a.usageStore.CommitExecution(ctx, domain.CommitExecutionParams{
		UserID:         p.UserID,
		PeriodKey:      p.PeriodKey,
		ExecutionID:    p.ExecutionID,
		CreditsUsedUSD: creditsUsed,
		ServiceUsage:   p.ServiceUsage,
	})
	if err != nil {
		return fmt.Errorf("failed to commit execution usage: %w", err)
	}

	log.Debug().
		Str("user_id", p.UserID).
		Str("period", p.PeriodKey).
		Int64("execution_id", p.ExecutionID).
		Float64("credits_used", creditsUsed).
		Int("service_usage_rows", len(p.ServiceUsage)).
		Msg("recorded execution usage")

	return nil
}
