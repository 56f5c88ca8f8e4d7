package audit

import (
	"context"
	"sort"
	"sync"

	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns matching events, newest first.
func (s *InMemoryStore) List(_ context.Context, filter audit.Filter, page paging.Page) ([]audit.Event, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []audit.Event
	for _, e := range s.events {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return paging.Slice(matched, page), len(matched), nil
}
