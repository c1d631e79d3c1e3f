package domain

import (
	"context"
	"fmt"
	"time"
)

// PlanLimits are the plan-derived monthly quotas evaluated by the gate.
type PlanLimits struct {
	MonthlyExecutions int     `json:"monthly_executions"`
	MonthlyCreditsUSD float64 `json:"monthly_credits_usd"`
}

func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		MonthlyExecutions: 100,
		MonthlyCreditsUSD: 5.0,
	}
}

// UsageSnapshot is the prior committed usage state for one billing period.
// Quota checks evaluate this snapshot, never usage accrued mid-execution.
type UsageSnapshot struct {
	ExecutionCount int     `json:"execution_count"`
	CreditsUsedUSD float64 `json:"credits_used_usd"`
}

type CommitExecutionParams struct {
	UserID         string
	PeriodKey      string
	ExecutionID    int64
	CreditsUsedUSD float64
	ServiceUsage   []ServiceUsageRecord
}

// UsageStore persists quota counters and service-usage rows. The execution
// counter increment must be atomic in the store, not read-modify-write in
// application code.
type UsageStore interface {
	GetUsage(ctx context.Context, userID string, periodKey string) (UsageSnapshot, error)
	CommitExecution(ctx context.Context, p CommitExecutionParams) error
}

// CredentialStore reads user credentials. Called fresh for every execution
// so revocation takes effect without restarts.
type CredentialStore interface {
	ListUserCredentials(ctx context.Context, userID string) ([]UserCredential, error)
}

// AccountStore resolves per-user plan limits and the billing anchor date the
// current period key is derived from.
type AccountStore interface {
	GetPlanLimits(ctx context.Context, userID string) (PlanLimits, error)
	GetBillingAnchor(ctx context.Context, userID string) (time.Time, error)
}

// BillingPeriodKey computes the key of the billing period containing now,
// anchored to the user's account creation date. Periods run month-to-month
// from the anchor day.
func BillingPeriodKey(anchor, now time.Time) string {
	if anchor.IsZero() || now.Before(anchor) {
		return fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month()))
	}

	start := anchor
	for {
		next := start.AddDate(0, 1, 0)
		if next.After(now) {
			break
		}

		start = next
	}

	return fmt.Sprintf("%04d-%02d-%02d", start.Year(), int(start.Month()), start.Day())
}
