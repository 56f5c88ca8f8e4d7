package directory

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

type InMemoryStore struct {
	mu        sync.RWMutex
	employees map[uuid.UUID]*Employee
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{employees: make(map[uuid.UUID]*Employee)}
}

func (s *InMemoryStore) Create(_ context.Context, e *Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(e.Email, e.ID) {
		return fmt.Errorf("employee %s: %w", e.Email, sentinel.ErrConflict)
	}
	s.employees[e.ID] = clone(e)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, e *Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[e.ID]; !ok {
		return fmt.Errorf("employee %s: %w", e.ID, sentinel.ErrNotFound)
	}
	if s.emailTaken(e.Email, e.ID) {
		return fmt.Errorf("employee %s: %w", e.Email, sentinel.ErrConflict)
	}
	s.employees[e.ID] = clone(e)
	return nil
}

// Delete removes the employee and detaches their direct reports.
func (s *InMemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.employees[id]; !ok {
		return fmt.Errorf("employee %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.employees, id)
	for _, e := range s.employees {
		if e.ManagerID != nil && *e.ManagerID == id {
			e.ManagerID = nil
		}
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", id, sentinel.ErrNotFound)
	}
	return clone(e), nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, address string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.employees {
		if strings.EqualFold(e.Email, address) {
			return clone(e), nil
		}
	}
	return nil, fmt.Errorf("employee %s: %w", address, sentinel.ErrNotFound)
}

// List sorts by last name, then first name.
func (s *InMemoryStore) List(_ context.Context, filter Filter, page paging.Page) ([]*Employee, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Employee
	for _, e := range s.employees {
		if filter.matches(e) {
			matched = append(matched, clone(e))
		}
	}
	sortEmployees(matched)
	return paging.Slice(matched, page), len(matched), nil
}

func (s *InMemoryStore) DirectReports(_ context.Context, managerID uuid.UUID) ([]*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Employee
	for _, e := range s.employees {
		if e.Active && e.ManagerID != nil && *e.ManagerID == managerID {
			out = append(out, clone(e))
		}
	}
	sortEmployees(out)
	return out, nil
}

// Departments counts active employees per non-empty department.
func (s *InMemoryStore) Departments(_ context.Context) ([]DepartmentCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range s.employees {
		if e.Active && e.Department != "" {
			counts[e.Department]++
		}
	}
	out := make([]DepartmentCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, DepartmentCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s *InMemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.employees {
		if e.Active {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) emailTaken(address string, except uuid.UUID) bool {
	for id, e := range s.employees {
		if id != except && strings.EqualFold(e.Email, address) {
			return true
		}
	}
	return false
}

func clone(e *Employee) *Employee {
	c := *e
	if e.ManagerID != nil {
		id := *e.ManagerID
		c.ManagerID = &id
	}
	return &c
}

func sortEmployees(es []*Employee) {
	sort.Slice(es, func(i, j int) bool {
		li, lj := strings.ToLower(es[i].LastName), strings.ToLower(es[j].LastName)
		if li != lj {
			return li < lj
		}
		fi, fj := strings.ToLower(es[i].FirstName), strings.ToLower(es[j].FirstName)
		if fi != fj {
			return fi < fj
		}
		return es[i].Email < es[j].Email
	})
}

// InTx runs fn directly; the map store has no rollback.
func (s *InMemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
