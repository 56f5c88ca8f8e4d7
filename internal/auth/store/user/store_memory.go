package user

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"intranet/internal/auth/models"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	pstrings "intranet/pkg/platform/strings"
)

// InMemoryUserStore keeps users in a map keyed by ID with a lower-cased email
// index. Returned users are copies.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, taken := s.byEmail[key]; taken {
		return fmt.Errorf("email %s: %w", user.Email, sentinel.ErrConflict)
	}
	s.users[user.ID] = clone(user)
	s.byEmail[key] = user.ID
	return nil
}

func (s *InMemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", user.ID, sentinel.ErrNotFound)
	}
	newKey := strings.ToLower(user.Email)
	if owner, taken := s.byEmail[newKey]; taken && owner != user.ID {
		return fmt.Errorf("email %s: %w", user.Email, sentinel.ErrConflict)
	}
	delete(s.byEmail, strings.ToLower(existing.Email))
	s.byEmail[newKey] = user.ID
	s.users[user.ID] = clone(user)
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return clone(u), nil
	}
	return nil, fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return clone(s.users[id]), nil
	}
	return nil, fmt.Errorf("user %s: %w", email, sentinel.ErrNotFound)
}

func (s *InMemoryUserStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.byEmail, strings.ToLower(u.Email))
	delete(s.users, id)
	return nil
}

// List returns users sorted by name.
func (s *InMemoryUserStore) List(_ context.Context, filter models.UserFilter, page paging.Page) ([]*models.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.User
	for _, u := range s.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		if filter.Query != "" && !pstrings.ContainsFold(filter.Query, u.Name, u.Email, u.Department) {
			continue
		}
		matched = append(matched, clone(u))
	}
	slices.SortFunc(matched, func(a, b *models.User) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Email, b.Email)
	})
	return paging.Slice(matched, page), len(matched), nil
}

func (s *InMemoryUserStore) ListActive(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.Active {
			out = append(out, clone(u))
		}
	}
	return out, nil
}

func (s *InMemoryUserStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.Active {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryUserStore) CountActiveAdmins(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.IsActiveAdmin() {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryUserStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func clone(u *models.User) *models.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
