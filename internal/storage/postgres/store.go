// Package postgres provides the production store implementations backed by a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("connected to postgres")

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetUsage(ctx context.Context, userID string, periodKey string) (domain.UsageSnapshot, error) {
	var snapshot domain.UsageSnapshot

	err := s.pool.QueryRow(ctx, `
		SELECT execution_count, credits_used_usd
		FROM monthly_usage
		WHERE user_id = $1 AND period_key = $2`,
		userID, periodKey,
	).Scan(&snapshot.ExecutionCount, &snapshot.CreditsUsedUSD)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UsageSnapshot{}, nil
	}
	if err != nil {
		return domain.UsageSnapshot{}, fmt.Errorf("failed to load usage: %w", err)
	}

	return snapshot, nil
}

// CommitExecution persists one successful execution in a single transaction:
// the counter increment is atomic at the database, concurrent executions for
// the same user never lose updates.
func (s *Store) CommitExecution(ctx context.Context, p domain.CommitExecutionParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO monthly_usage (user_id, period_key, execution_count, credits_used_usd)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (user_id, period_key) DO UPDATE SET
			execution_count = monthly_usage.execution_count + 1,
			credits_used_usd = monthly_usage.credits_used_usd + EXCLUDED.credits_used_usd`,
		p.UserID, p.PeriodKey, p.CreditsUsedUSD)
	if err != nil {
		return fmt.Errorf("failed to increment usage counters: %w", err)
	}

	for _, usage := range p.ServiceUsage {
		_, err = tx.Exec(ctx, `
			INSERT INTO service_usage (user_id, period_key, execution_id, service, unit, units, cost_usd, bubble_name, is_user_credential)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.UserID, p.PeriodKey, p.ExecutionID,
			usage.Service, usage.Unit, usage.Units, usage.CostUSD,
			usage.BubbleName, usage.IsUserCredential)
		if err != nil {
			return fmt.Errorf("failed to insert service usage row: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) ListUserCredentials(ctx context.Context, userID string) ([]domain.UserCredential, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, credential_type, secret, bubble_variable_id
		FROM user_credentials
		WHERE user_id = $1
		ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	credentials := []domain.UserCredential{}

	for rows.Next() {
		var cred domain.UserCredential
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.Type, &cred.Secret, &cred.BubbleVariableID); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}

		credentials = append(credentials, cred)
	}

	return credentials, rows.Err()
}

func (s *Store) GetPlanLimits(ctx context.Context, userID string) (domain.PlanLimits, error) {
	var limits domain.PlanLimits

	err := s.pool.QueryRow(ctx, `
		SELECT monthly_executions, monthly_credits_usd
		FROM accounts
		WHERE user_id = $1`,
		userID,
	).Scan(&limits.MonthlyExecutions, &limits.MonthlyCreditsUSD)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultPlanLimits(), nil
	}
	if err != nil {
		return domain.PlanLimits{}, fmt.Errorf("failed to load plan limits: %w", err)
	}

	return limits, nil
}

func (s *Store) GetBillingAnchor(ctx context.Context, userID string) (time.Time, error) {
	var anchor time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT created_at
		FROM accounts
		WHERE user_id = $1`,
		userID,
	).Scan(&anchor)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load billing anchor: %w", err)
	}

	return anchor, nil
}
