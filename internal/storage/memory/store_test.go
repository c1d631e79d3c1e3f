package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bubblelabai/bubblelab/internal/storage/memory"
	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CommitExecutionAccumulates(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.CommitExecution(ctx, domain.CommitExecutionParams{
			UserID:         "user-1",
			PeriodKey:      "2026-08",
			ExecutionID:    int64(i),
			CreditsUsedUSD: 0.5,
			ServiceUsage: []domain.ServiceUsageRecord{
				{Service: "openai", Units: 100, CostUSD: 0.5},
			},
		})
		require.NoError(t, err)
	}

	usage, err := store.GetUsage(ctx, "user-1", "2026-08")
	require.NoError(t, err)

	assert.Equal(t, 3, usage.ExecutionCount)
	assert.InDelta(t, 1.5, usage.CreditsUsedUSD, 1e-9)
	assert.Len(t, store.ServiceUsage("user-1", "2026-08"), 3)

	// Other periods stay untouched.
	other, err := store.GetUsage(ctx, "user-1", "2026-09")
	require.NoError(t, err)
	assert.Zero(t, other.ExecutionCount)
}

func TestStore_CommitExecutionIsSafeConcurrently(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_ = store.CommitExecution(ctx, domain.CommitExecutionParams{
				UserID:    "user-1",
				PeriodKey: "2026-08",
			})
		}()
	}
	wg.Wait()

	usage, err := store.GetUsage(ctx, "user-1", "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 50, usage.ExecutionCount)
}

func TestStore_CredentialLifecycle(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	store.PutUserCredential(domain.UserCredential{
		ID: "c1", UserID: "user-1", Type: domain.CredentialTypeResend, Secret: "s1",
	})
	store.PutUserCredential(domain.UserCredential{
		ID: "c2", UserID: "user-1", Type: domain.CredentialTypeSlack, Secret: "s2",
	})

	creds, err := store.ListUserCredentials(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, creds, 2)

	store.DeleteUserCredential("user-1", "c1")

	creds, err = store.ListUserCredentials(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "c2", creds[0].ID)

	other, err := store.ListUserCredentials(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_PlanLimitsDefaultWhenUnset(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	limits, err := store.GetPlanLimits(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPlanLimits(), limits)

	store.SetPlanLimits("user-1", domain.PlanLimits{MonthlyExecutions: 10, MonthlyCreditsUSD: 1})

	limits, err = store.GetPlanLimits(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, limits.MonthlyExecutions)
}

func TestStore_BillingAnchor(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	anchor, err := store.GetBillingAnchor(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, anchor.IsZero())

	want := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	store.SetBillingAnchor("user-1", want)

	anchor, err = store.GetBillingAnchor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, want, anchor)
}
