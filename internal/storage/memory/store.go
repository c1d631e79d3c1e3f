// Package memory provides in-process store implementations used by tests and
// single-node deployments without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bubblelabai/bubblelab/pkg/domain"
)

type usageKey struct {
	userID    string
	periodKey string
}

// Store implements the usage, credential and account stores behind a single
// mutex. Suitable for tests and local runs; production uses postgres.
type Store struct {
	mu sync.Mutex

	usage        map[usageKey]domain.UsageSnapshot
	usageRecords map[usageKey][]domain.ServiceUsageRecord
	credentials  map[string][]domain.UserCredential
	limits       map[string]domain.PlanLimits
	anchors      map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		usage:        map[usageKey]domain.UsageSnapshot{},
		usageRecords: map[usageKey][]domain.ServiceUsageRecord{},
		credentials:  map[string][]domain.UserCredential{},
		limits:       map[string]domain.PlanLimits{},
		anchors:      map[string]time.Time{},
	}
}

func (s *Store) GetUsage(ctx context.Context, userID string, periodKey string) (domain.UsageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usage[usageKey{userID, periodKey}], nil
}

func (s *Store) CommitExecution(ctx context.Context, p domain.CommitExecutionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{p.UserID, p.PeriodKey}

	snapshot := s.usage[key]
	snapshot.ExecutionCount++
	snapshot.CreditsUsedUSD += p.CreditsUsedUSD
	s.usage[key] = snapshot

	s.usageRecords[key] = append(s.usageRecords[key], p.ServiceUsage...)

	return nil
}

// ServiceUsage returns the persisted usage rows for one user and period.
func (s *Store) ServiceUsage(userID string, periodKey string) []domain.ServiceUsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.usageRecords[usageKey{userID, periodKey}]
	out := make([]domain.ServiceUsageRecord, len(records))
	copy(out, records)

	return out
}

func (s *Store) ListUserCredentials(ctx context.Context, userID string) ([]domain.UserCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.credentials[userID]
	out := make([]domain.UserCredential, len(creds))
	copy(out, creds)

	return out, nil
}

func (s *Store) PutUserCredential(cred domain.UserCredential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[cred.UserID] = append(s.credentials[cred.UserID], cred)
}

func (s *Store) DeleteUserCredential(userID string, credentialID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := []domain.UserCredential{}
	for _, cred := range s.credentials[userID] {
		if cred.ID != credentialID {
			kept = append(kept, cred)
		}
	}

	s.credentials[userID] = kept
}

func (s *Store) GetPlanLimits(ctx context.Context, userID string) (domain.PlanLimits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limits, ok := s.limits[userID]; ok {
		return limits, nil
	}

	return domain.DefaultPlanLimits(), nil
}

func (s *Store) SetPlanLimits(userID string, limits domain.PlanLimits) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limits[userID] = limits
}

func (s *Store) GetBillingAnchor(ctx context.Context, userID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.anchors[userID], nil
}

func (s *Store) SetBillingAnchor(userID string, anchor time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anchors[userID] = anchor
}
