package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/domain"
	"github.com/bubblelabai/bubblelab/pkg/quota"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	usage   domain.UsageSnapshot
	limits  domain.PlanLimits
	anchor  time.Time
	commits []domain.CommitExecutionParams
}

func (s *fakeStore) GetUsage(ctx context.Context, userID string, periodKey string) (domain.UsageSnapshot, error) {
	return s.usage, nil
}

func (s *fakeStore) CommitExecution(ctx context.Context, p domain.CommitExecutionParams) error {
	s.commits = append(s.commits, p)
	s.usage.ExecutionCount++
	s.usage.CreditsUsedUSD += p.CreditsUsedUSD

	return nil
}

func (s *fakeStore) GetPlanLimits(ctx context.Context, userID string) (domain.PlanLimits, error) {
	return s.limits, nil
}

func (s *fakeStore) GetBillingAnchor(ctx context.Context, userID string) (time.Time, error) {
	return s.anchor, nil
}

func newGate(store *fakeStore, now time.Time) *quota.Gate {
	return quota.NewGate(quota.GateDeps{
		UsageStore:   store,
		AccountStore: store,
		Now:          func() time.Time { return now },
	})
}

func TestGate_CheckExecutionCount(t *testing.T) {
	tests := []struct {
		name     string
		used     int
		limit    int
		wantDeny bool
	}{
		{name: "under limit", used: 42, limit: 100, wantDeny: false},
		{name: "one below limit", used: 99, limit: 100, wantDeny: false},
		{name: "at limit", used: 100, limit: 100, wantDeny: true},
		{name: "over limit", used: 150, limit: 100, wantDeny: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				usage:  domain.UsageSnapshot{ExecutionCount: tt.used},
				limits: domain.PlanLimits{MonthlyExecutions: tt.limit, MonthlyCreditsUSD: 5},
			}

			err := newGate(store, time.Now()).CheckExecutionCount(context.Background(), "user-1", "2026-08")

			if !tt.wantDeny {
				assert.NoError(t, err)

				return
			}

			var quotaErr *domain.QuotaExceededError
			require.ErrorAs(t, err, &quotaErr)
			assert.Equal(t, domain.QuotaKindExecutions, quotaErr.Kind)
			assert.Equal(t, float64(tt.used), quotaErr.Used)
		})
	}
}

func TestGate_CheckCredits_OnlyGatesSystemBackedRuns(t *testing.T) {
	store := &fakeStore{
		usage:  domain.UsageSnapshot{CreditsUsedUSD: 5},
		limits: domain.PlanLimits{MonthlyExecutions: 100, MonthlyCreditsUSD: 5},
	}
	gate := newGate(store, time.Now())

	// No system-backed services: exhausted credits do not block the run.
	assert.NoError(t, gate.CheckCredits(context.Background(), "user-1", "2026-08", nil))

	err := gate.CheckCredits(context.Background(), "user-1", "2026-08", []string{"openai", "resend"})

	var quotaErr *domain.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, domain.QuotaKindCredits, quotaErr.Kind)
	assert.Equal(t, []string{"openai", "resend"}, quotaErr.Services)
	assert.Contains(t, quotaErr.Error(), "openai")
}

func TestGate_PeriodKeyFollowsBillingAnchor(t *testing.T) {
	store := &fakeStore{
		anchor: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	gate := newGate(store, time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC))

	key, err := gate.PeriodKey(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "2026-08-15", key)
}

func TestAccountant_RecordsOnlySystemBackedCredits(t *testing.T) {
	store := &fakeStore{}
	accountant := quota.NewAccountant(quota.AccountantDeps{UsageStore: store})

	err := accountant.RecordExecution(context.Background(), quota.RecordExecutionParams{
		UserID:      "user-1",
		PeriodKey:   "2026-08",
		ExecutionID: 12345,
		ServiceUsage: []domain.ServiceUsageRecord{
			{Service: "openai", Units: 1000, CostUSD: 0.02, IsUserCredential: false},
			{Service: "resend", Units: 1, CostUSD: 0.001, IsUserCredential: true},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.commits, 1)
	commit := store.commits[0]

	assert.Equal(t, 1, store.usage.ExecutionCount)
	assert.InDelta(t, 0.02, commit.CreditsUsedUSD, 1e-9)
	assert.Len(t, commit.ServiceUsage, 2)
}

func TestBillingPeriodKey(t *testing.T) {
	anchor := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{
			name: "first period",
			now:  time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
			want: "2026-01-31",
		},
		{
			name: "later period",
			now:  time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
			want: "2026-05-03",
		},
		{
			name: "before anchor falls back to calendar month",
			now:  time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC),
			want: "2025-12",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.BillingPeriodKey(anchor, tt.now))
		})
	}
}
