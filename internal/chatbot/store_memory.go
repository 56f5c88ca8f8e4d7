package chatbot

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	faqs    map[uuid.UUID]*FAQ
	queries []*QueryLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{faqs: make(map[uuid.UUID]*FAQ)}
}

func cloneFAQ(f *FAQ) *FAQ {
	c := *f
	c.Keywords = slices.Clone(f.Keywords)
	return &c
}

func (s *InMemoryStore) CreateFAQ(_ context.Context, f *FAQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faqs[f.ID] = cloneFAQ(f)
	return nil
}

// UpdateFAQ keeps the stored hit counter.
func (s *InMemoryStore) UpdateFAQ(_ context.Context, f *FAQ) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.faqs[f.ID]
	if !ok {
		return fmt.Errorf("faq %s: %w", f.ID, sentinel.ErrNotFound)
	}
	c := cloneFAQ(f)
	c.Hits = existing.Hits
	s.faqs[f.ID] = c
	return nil
}

func (s *InMemoryStore) DeleteFAQ(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.faqs[id]; !ok {
		return fmt.Errorf("faq %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.faqs, id)
	return nil
}

func (s *InMemoryStore) FindFAQ(_ context.Context, id uuid.UUID) (*FAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.faqs[id]
	if !ok {
		return nil, fmt.Errorf("faq %s: %w", id, sentinel.ErrNotFound)
	}
	return cloneFAQ(f), nil
}

func (s *InMemoryStore) ListFAQs(_ context.Context, filter Filter, page paging.Page) ([]*FAQ, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*FAQ
	for _, f := range s.faqs {
		if filter.matches(f) {
			matched = append(matched, cloneFAQ(f))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !strings.EqualFold(a.Category, b.Category) {
			return strings.ToLower(a.Category) < strings.ToLower(b.Category)
		}
		return strings.ToLower(a.Question) < strings.ToLower(b.Question)
	})
	return paging.Slice(matched, page), len(matched), nil
}

func (s *InMemoryStore) ActiveFAQs(_ context.Context) ([]*FAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FAQ, 0, len(s.faqs))
	for _, f := range s.faqs {
		if f.Active {
			out = append(out, cloneFAQ(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) IncrementHits(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faqs[id]
	if !ok {
		return fmt.Errorf("faq %s: %w", id, sentinel.ErrNotFound)
	}
	f.Hits++
	return nil
}

func (s *InMemoryStore) LogQuery(_ context.Context, q *QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *q
	s.queries = append(s.queries, &c)
	return nil
}

func (s *InMemoryStore) Unanswered(_ context.Context, page paging.Page) ([]*QueryLog, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*QueryLog
	for i := len(s.queries) - 1; i >= 0; i-- {
		if q := s.queries[i]; !q.Answered {
			c := *q
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paging.Slice(out, page), len(out), nil
}

func (s *InMemoryStore) QueryStats(_ context.Context, since time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total, answered := 0, 0
	for _, q := range s.queries {
		if q.CreatedAt.Before(since) {
			continue
		}
		total++
		if q.Answered {
			answered++
		}
	}
	return NewStats(total, answered), nil
}

func (s *InMemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, f := range s.faqs {
		if f.Active {
			n++
		}
	}
	return n, nil
}
