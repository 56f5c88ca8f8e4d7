package applink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"intranet/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	links map[uuid.UUID]*AppLink
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{links: make(map[uuid.UUID]*AppLink)}
}

func (s *InMemoryStore) Create(_ context.Context, l *AppLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *l
	s.links[l.ID] = &c
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, l *AppLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[l.ID]; !ok {
		return fmt.Errorf("app link %s: %w", l.ID, sentinel.ErrNotFound)
	}
	c := *l
	s.links[l.ID] = &c
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[id]; !ok {
		return fmt.Errorf("app link %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.links, id)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*AppLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[id]
	if !ok {
		return nil, fmt.Errorf("app link %s: %w", id, sentinel.ErrNotFound)
	}
	c := *l
	return &c, nil
}

func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]*AppLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AppLink, 0, len(s.links))
	for _, l := range s.links {
		if !filter.matches(l) {
			continue
		}
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

// SetSortOrders applies all orders or none.
func (s *InMemoryStore) SetSortOrders(_ context.Context, orders map[uuid.UUID]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range orders {
		if _, ok := s.links[id]; !ok {
			return fmt.Errorf("app link %s: %w", id, sentinel.ErrNotFound)
		}
	}
	for id, order := range orders {
		s.links[id].SortOrder = order
	}
	return nil
}

func (s *InMemoryStore) MaxSortOrder(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxOrder := -1
	for _, l := range s.links {
		maxOrder = max(maxOrder, l.SortOrder)
	}
	return maxOrder, nil
}

func (s *InMemoryStore) CountVisible(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.links {
		if l.Visible {
			n++
		}
	}
	return n, nil
}
