package policy

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

type ackKey struct {
	policyID uuid.UUID
	userID   uuid.UUID
	version  int
}

type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*Policy
	acks     map[ackKey]*Acknowledgement
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[uuid.UUID]*Policy),
		acks:     make(map[ackKey]*Acknowledgement),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(p.Slug, p.ID) {
		return fmt.Errorf("slug %s: %w", p.Slug, sentinel.ErrConflict)
	}
	c := *p
	s.policies[p.ID] = &c
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		return fmt.Errorf("policy %s: %w", p.ID, sentinel.ErrNotFound)
	}
	c := *p
	s.policies[p.ID] = &c
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.policies, id)
	for k := range s.acks {
		if k.policyID == id {
			delete(s.acks, k)
		}
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *InMemoryStore) FindBySlug(_ context.Context, slug string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies {
		if p.Slug == slug {
			c := *p
			return &c, nil
		}
	}
	return nil, fmt.Errorf("policy %s: %w", slug, sentinel.ErrNotFound)
}

func (s *InMemoryStore) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(slug, uuid.Nil), nil
}

// List orders by category then title.
func (s *InMemoryStore) List(_ context.Context, filter Filter, page paging.Page) ([]*Policy, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Policy
	for _, p := range s.policies {
		if filter.matches(p) {
			c := *p
			matched = append(matched, &c)
		}
	}
	sortPolicies(matched)
	return paging.Slice(matched, page), len(matched), nil
}

// Acknowledge stores ack unless the user already acknowledged that version,
// in which case the earlier record is returned.
func (s *InMemoryStore) Acknowledge(_ context.Context, ack *Acknowledgement) (*Acknowledgement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[ack.PolicyID]; !ok {
		return nil, fmt.Errorf("policy %s: %w", ack.PolicyID, sentinel.ErrNotFound)
	}
	key := ackKey{ack.PolicyID, ack.UserID, ack.Version}
	if existing, ok := s.acks[key]; ok {
		c := *existing
		return &c, nil
	}
	c := *ack
	s.acks[key] = &c
	return ack, nil
}

func (s *InMemoryStore) Acknowledgements(_ context.Context, policyID uuid.UUID, version int) ([]*Acknowledgement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Acknowledgement
	for k, a := range s.acks {
		if k.policyID == policyID && k.version == version {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AcknowledgedAt.Before(out[j].AcknowledgedAt) })
	return out, nil
}

// Pending lists published policies needing acknowledgement that userID has
// not acknowledged at their current version.
func (s *InMemoryStore) Pending(_ context.Context, userID uuid.UUID) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Policy
	for _, p := range s.policies {
		if !p.IsPublished() || !p.RequiresAcknowledgement {
			continue
		}
		if _, ok := s.acks[ackKey{p.ID, userID, p.Version}]; ok {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sortPolicies(out)
	return out, nil
}

func (s *InMemoryStore) CountPublished(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.policies {
		if p.IsPublished() {
			n++
		}
	}
	return n, nil
}

// AcknowledgementCounts returns, per published policy requiring
// acknowledgement, how many users acknowledged its current version.
func (s *InMemoryStore) AcknowledgementCounts(_ context.Context) ([]AckCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var policies []*Policy
	for _, p := range s.policies {
		if p.IsPublished() && p.RequiresAcknowledgement {
			policies = append(policies, p)
		}
	}
	sortPolicies(policies)
	out := make([]AckCount, 0, len(policies))
	for _, p := range policies {
		n := 0
		for k := range s.acks {
			if k.policyID == p.ID && k.version == p.Version {
				n++
			}
		}
		out = append(out, AckCount{PolicyID: p.ID, Slug: p.Slug, Title: p.Title, Version: p.Version, Acknowledged: n})
	}
	return out, nil
}

func (s *InMemoryStore) slugTaken(slug string, except uuid.UUID) bool {
	for id, p := range s.policies {
		if id != except && p.Slug == slug {
			return true
		}
	}
	return false
}

func sortPolicies(ps []*Policy) {
	sort.Slice(ps, func(i, j int) bool {
		ci, cj := strings.ToLower(ps[i].Category), strings.ToLower(ps[j].Category)
		if ci != cj {
			return ci < cj
		}
		return strings.ToLower(ps[i].Title) < strings.ToLower(ps[j].Title)
	})
}
