package applink

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, l *AppLink) error
	Update(ctx context.Context, l *AppLink) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*AppLink, error)
	List(ctx context.Context, filter Filter) ([]*AppLink, error)
	SetSortOrders(ctx context.Context, orders map[uuid.UUID]int) error
	MaxSortOrder(ctx context.Context) (int, error)
}

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("app link store is required")
	}
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Launcher groups visible links by category. Named categories come first in
// alphabetical order; links without one close the list under "Other".
func (s *Service) Launcher(ctx context.Context) ([]Group, error) {
	links, err := s.store.List(ctx, Filter{VisibleOnly: true})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load app links")
	}
	byCategory := make(map[string]*Group)
	var keys []string
	for _, l := range links {
		key := strings.ToLower(l.Category)
		g, ok := byCategory[key]
		if !ok {
			label := l.Category
			if label == "" {
				label = UncategorisedLabel
			}
			g = &Group{Category: label}
			byCategory[key] = g
			keys = append(keys, key)
		}
		g.Links = append(g.Links, l)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "" || keys[j] == "" {
			return keys[j] == ""
		}
		return keys[i] < keys[j]
	})
	groups := make([]Group, 0, len(keys))
	for _, k := range keys {
		g := byCategory[k]
		sort.SliceStable(g.Links, func(i, j int) bool { return less(g.Links[i], g.Links[j]) })
		groups = append(groups, *g)
	}
	return groups, nil
}

func (s *Service) List(ctx context.Context, category string) ([]*AppLink, error) {
	links, err := s.store.List(ctx, Filter{Category: category})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list app links")
	}
	return links, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AppLink, error) {
	l, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return l, nil
}

// Create appends the link after the current last one unless a sort order is
// given. Links are visible unless stated otherwise.
func (s *Service) Create(ctx context.Context, req *AppLinkRequest) (*AppLink, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	l := &AppLink{ID: uuid.New(), Visible: true, CreatedAt: now, UpdatedAt: now}
	apply(l, req)
	if req.SortOrder == nil {
		last, err := s.store.MaxSortOrder(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to place app link")
		}
		l.SortOrder = last + 1
	}
	if err := s.store.Create(ctx, l); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create app link")
	}
	s.logAudit(ctx, audit.EventAppLinkCreated, l.ID, "name", l.Name)
	return l, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *AppLinkRequest) (*AppLink, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	l, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	apply(l, req)
	l.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, l); err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventAppLinkUpdated, l.ID, "name", l.Name)
	return l, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err)
	}
	s.logAudit(ctx, audit.EventAppLinkDeleted, id)
	return nil
}

// Reorder puts ids first, in the given order, and keeps every other link
// after them in its previous relative order. Sort orders are renumbered from 0.
func (s *Service) Reorder(ctx context.Context, ids []uuid.UUID) ([]*AppLink, error) {
	if err := validation.Struct(&ReorderRequest{IDs: ids}); err != nil {
		return nil, err
	}
	links, err := s.store.List(ctx, Filter{})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load app links")
	}
	known := make(map[uuid.UUID]bool, len(links))
	for _, l := range links {
		known[l.ID] = true
	}
	orders := make(map[uuid.UUID]int, len(links))
	for _, id := range ids {
		if !known[id] {
			return nil, dErrors.New(dErrors.CodeNotFound, "app link "+id.String()+" not found")
		}
		if _, dup := orders[id]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, "ids must not repeat")
		}
		orders[id] = len(orders)
	}
	for _, l := range links {
		if _, ok := orders[l.ID]; !ok {
			orders[l.ID] = len(orders)
		}
	}
	if err := s.store.SetSortOrders(ctx, orders); err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventAppLinksReordered, uuid.Nil, "count", strconv.Itoa(len(ids)))
	return s.List(ctx, "")
}

func apply(l *AppLink, req *AppLinkRequest) {
	l.Name = req.Name
	l.URL = req.URL
	l.IconURL = req.IconURL
	l.Description = req.Description
	l.Category = req.Category
	if req.SortOrder != nil {
		l.SortOrder = *req.SortOrder
	}
	if req.Visible != nil {
		l.Visible = *req.Visible
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, id uuid.UUID, attrs ...any) {
	resourceID := ""
	if id != uuid.Nil {
		resourceID = id.String()
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "app_link", resourceID, attrs...)
}

func translate(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "app link not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "app link store failure")
}
