// Package lockout counts failed logins per identifier and records locks.
package lockout

import (
	"context"
	"sync"
	"time"

	"intranet/internal/auth/models"
)

type InMemoryLockoutStore struct {
	mu      sync.Mutex
	records map[string]models.Lockout
}

func NewInMemory() *InMemoryLockoutStore {
	return &InMemoryLockoutStore{records: make(map[string]models.Lockout)}
}

// Get returns nil when the identifier has no recorded failures.
func (s *InMemoryLockoutStore) Get(_ context.Context, identifier string) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RecordFailure increments the failure count. A count older than window
// restarts at one.
func (s *InMemoryLockoutStore) RecordFailure(_ context.Context, identifier string, now time.Time, window time.Duration) (*models.Lockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[identifier]
	if !ok || (!rec.IsLockedAt(now) && !now.Before(rec.FirstFailure.Add(window))) {
		rec = models.Lockout{Identifier: identifier, FirstFailure: now}
	}
	rec.FailureCount++
	s.records[identifier] = rec
	return &rec, nil
}

func (s *InMemoryLockoutStore) Lock(_ context.Context, identifier string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[identifier]
	rec.Identifier = identifier
	rec.LockedUntil = &until
	s.records[identifier] = rec
	return nil
}

func (s *InMemoryLockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}
