package safety

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
)

type ackKey struct {
	alertID uuid.UUID
	userID  uuid.UUID
}

// InMemoryStore holds alerts, acknowledgements and talks.
type InMemoryStore struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*Alert
	acks   map[ackKey]time.Time
	talks  map[uuid.UUID]*Talk
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		alerts: make(map[uuid.UUID]*Alert),
		acks:   make(map[ackKey]time.Time),
		talks:  make(map[uuid.UUID]*Talk),
	}
}

func (s *InMemoryStore) CreateAlert(_ context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = cloneAlert(a)
	return nil
}

func (s *InMemoryStore) UpdateAlert(_ context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return fmt.Errorf("alert %s: %w", a.ID, sentinel.ErrNotFound)
	}
	s.alerts[a.ID] = cloneAlert(a)
	return nil
}

func (s *InMemoryStore) DeleteAlert(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return fmt.Errorf("alert %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.alerts, id)
	for k := range s.acks {
		if k.alertID == id {
			delete(s.acks, k)
		}
	}
	return nil
}

func (s *InMemoryStore) FindAlert(_ context.Context, id uuid.UUID) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, sentinel.ErrNotFound)
	}
	return cloneAlert(a), nil
}

// ListAlerts orders newest first.
func (s *InMemoryStore) ListAlerts(_ context.Context, filter AlertFilter, page paging.Page) ([]*Alert, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Alert
	for _, a := range s.alerts {
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.ActiveOnly && !a.Active {
			continue
		}
		matched = append(matched, cloneAlert(a))
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return paging.Slice(matched, page), len(matched), nil
}

// LiveAlerts returns alerts live at now, critical first then newest start.
func (s *InMemoryStore) LiveAlerts(_ context.Context, now time.Time) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Alert
	for _, a := range s.alerts {
		if a.LiveAt(now) {
			out = append(out, cloneAlert(a))
		}
	}
	sortLive(out)
	return out, nil
}

func (s *InMemoryStore) AcknowledgeAlert(_ context.Context, ack *AlertAcknowledgement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[ack.AlertID]; !ok {
		return fmt.Errorf("alert %s: %w", ack.AlertID, sentinel.ErrNotFound)
	}
	key := ackKey{ack.AlertID, ack.UserID}
	if _, ok := s.acks[key]; !ok {
		s.acks[key] = ack.At
	}
	return nil
}

// AcknowledgedBy returns which of alertIDs userID has acknowledged.
func (s *InMemoryStore) AcknowledgedBy(_ context.Context, userID uuid.UUID, alertIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]bool)
	for _, id := range alertIDs {
		if _, ok := s.acks[ackKey{id, userID}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *InMemoryStore) CountAcknowledgements(_ context.Context, alertID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.acks {
		if k.alertID == alertID {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) AlertsBySeverity(_ context.Context) ([]SeverityCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Severity]int)
	for _, a := range s.alerts {
		counts[a.Severity]++
	}
	return severityCounts(counts), nil
}

func (s *InMemoryStore) CreateTalk(_ context.Context, t *Talk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.talks[t.ID] = &c
	return nil
}

func (s *InMemoryStore) UpdateTalk(_ context.Context, t *Talk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.talks[t.ID]; !ok {
		return fmt.Errorf("talk %s: %w", t.ID, sentinel.ErrNotFound)
	}
	c := *t
	s.talks[t.ID] = &c
	return nil
}

func (s *InMemoryStore) DeleteTalk(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.talks[id]; !ok {
		return fmt.Errorf("talk %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.talks, id)
	return nil
}

func (s *InMemoryStore) FindTalk(_ context.Context, id uuid.UUID) (*Talk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.talks[id]
	if !ok {
		return nil, fmt.Errorf("talk %s: %w", id, sentinel.ErrNotFound)
	}
	c := *t
	return &c, nil
}

// ListTalks orders by talk date, newest first.
func (s *InMemoryStore) ListTalks(_ context.Context, filter TalkFilter, page paging.Page) ([]*Talk, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Talk
	for _, t := range s.talks {
		if filter.PublishedOnly && !t.Published {
			continue
		}
		if filter.Topic != "" && !strings.EqualFold(t.Topic, filter.Topic) {
			continue
		}
		c := *t
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].TalkDate.Equal(matched[j].TalkDate) {
			return matched[i].TalkDate.After(matched[j].TalkDate)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return paging.Slice(matched, page), len(matched), nil
}

func cloneAlert(a *Alert) *Alert {
	c := *a
	if a.EndsAt != nil {
		t := *a.EndsAt
		c.EndsAt = &t
	}
	if a.CreatedBy != nil {
		id := *a.CreatedBy
		c.CreatedBy = &id
	}
	return &c
}

func sortLive(alerts []*Alert) {
	sort.Slice(alerts, func(i, j int) bool {
		ri, rj := alerts[i].Severity.Rank(), alerts[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if !alerts[i].StartsAt.Equal(alerts[j].StartsAt) {
			return alerts[i].StartsAt.After(alerts[j].StartsAt)
		}
		return alerts[i].ID.String() < alerts[j].ID.String()
	})
}

func severityCounts(counts map[Severity]int) []SeverityCount {
	out := make([]SeverityCount, 0, 3)
	for _, sev := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo} {
		out = append(out, SeverityCount{Severity: sev, Count: counts[sev]})
	}
	return out
}
