package news

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
)

// InMemoryStore keeps articles in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu       sync.RWMutex
	articles map[uuid.UUID]*Article
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{articles: make(map[uuid.UUID]*Article)}
}

func (s *InMemoryStore) Create(_ context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(a.Slug, a.ID) {
		return fmt.Errorf("slug %s: %w", a.Slug, sentinel.ErrConflict)
	}
	s.articles[a.ID] = clone(a)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, a *Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.articles[a.ID]
	if !ok {
		return fmt.Errorf("article %s: %w", a.ID, sentinel.ErrNotFound)
	}
	if s.slugTaken(a.Slug, a.ID) {
		return fmt.Errorf("slug %s: %w", a.Slug, sentinel.ErrConflict)
	}
	updated := clone(a)
	updated.Views = existing.Views
	s.articles[a.ID] = updated
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return fmt.Errorf("article %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.articles, id)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", id, sentinel.ErrNotFound)
	}
	return clone(a), nil
}

func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.articles {
		if a.Slug == slug {
			return clone(a), nil
		}
	}
	return nil, fmt.Errorf("article %s: %w", slug, sentinel.ErrNotFound)
}

func (s *InMemoryStore) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(slug, uuid.Nil), nil
}

// List orders pinned articles first, then newest by publication time.
func (s *InMemoryStore) List(_ context.Context, filter Filter, page paging.Page) ([]*Article, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Article
	for _, a := range s.articles {
		if filter.matches(a) {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Pinned != matched[j].Pinned {
			return matched[i].Pinned
		}
		ti, tj := matched[i].sortTime(), matched[j].sortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return cloneAll(paging.Slice(matched, page)), len(matched), nil
}

func (s *InMemoryStore) IncrementViews(_ context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return 0, fmt.Errorf("article %s: %w", id, sentinel.ErrNotFound)
	}
	a.Views++
	return a.Views, nil
}

func (s *InMemoryStore) Categories(_ context.Context) ([]CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, a := range s.articles {
		if a.IsPublished() && a.Category != "" {
			counts[a.Category]++
		}
	}
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *InMemoryStore) CountPublished(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.articles {
		if a.IsPublished() {
			n++
		}
	}
	return n, nil
}

// TopByViews returns the n most read published articles.
func (s *InMemoryStore) TopByViews(_ context.Context, n int) ([]*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var published []*Article
	for _, a := range s.articles {
		if a.IsPublished() {
			published = append(published, a)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		if published[i].Views != published[j].Views {
			return published[i].Views > published[j].Views
		}
		return published[i].sortTime().After(published[j].sortTime())
	})
	if len(published) > n {
		published = published[:n]
	}
	return cloneAll(published), nil
}

func (s *InMemoryStore) slugTaken(slug string, except uuid.UUID) bool {
	for id, a := range s.articles {
		if id != except && a.Slug == slug {
			return true
		}
	}
	return false
}

func clone(a *Article) *Article {
	c := *a
	c.Tags = append([]string{}, a.Tags...)
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

func cloneAll(in []*Article) []*Article {
	out := make([]*Article, len(in))
	for i, a := range in {
		out[i] = clone(a)
	}
	return out
}
