// Package otp stores pending one-time codes and per-address send history.
package otp

import (
	"context"
	"sync"
	"time"

	"intranet/internal/auth/models"
	"intranet/pkg/platform/sentinel"
)

// InMemoryOTPStore keeps one pending code per (email, purpose).
type InMemoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]models.OTP
	sends map[string][]time.Time
}

func NewInMemory() *InMemoryOTPStore {
	return &InMemoryOTPStore{
		codes: make(map[string]models.OTP),
		sends: make(map[string][]time.Time),
	}
}

func key(email string, purpose models.OTPPurpose) string {
	return string(purpose) + ":" + email
}

// Save replaces any pending code for the same email and purpose.
func (s *InMemoryOTPStore) Save(_ context.Context, otp *models.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[key(otp.Email, otp.Purpose)] = *otp
	return nil
}

func (s *InMemoryOTPStore) Find(_ context.Context, email string, purpose models.OTPPurpose) (*models.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	otp, ok := s.codes[key(email, purpose)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &otp, nil
}

func (s *InMemoryOTPStore) IncrementAttempts(_ context.Context, email string, purpose models.OTPPurpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(email, purpose)
	otp, ok := s.codes[k]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	otp.Attempts++
	s.codes[k] = otp
	return otp.Attempts, nil
}

func (s *InMemoryOTPStore) Delete(_ context.Context, email string, purpose models.OTPPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, key(email, purpose))
	return nil
}

// RecordSend notes a send at now and returns how many sends fall inside the
// trailing window, this one included.
func (s *InMemoryOTPStore) RecordSend(_ context.Context, email string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-window)
	kept := s.sends[email][:0]
	for _, at := range s.sends[email] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	kept = append(kept, now)
	s.sends[email] = kept
	return len(kept), nil
}
