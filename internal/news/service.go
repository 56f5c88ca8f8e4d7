package news

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	pkgstrings "intranet/pkg/platform/strings"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
	"intranet/pkg/richtext"
)

// Store persists articles. Create and Update return sentinel.ErrConflict
// when the slug is already used.
type Store interface {
	Create(ctx context.Context, a *Article) error
	Update(ctx context.Context, a *Article) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*Article, error)
	FindBySlug(ctx context.Context, slug string) (*Article, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter Filter, page paging.Page) ([]*Article, int, error)
	IncrementViews(ctx context.Context, id uuid.UUID) (int64, error)
	Categories(ctx context.Context) ([]CategoryCount, error)
}

type Metrics interface {
	ObservePublished(kind string)
}

const summaryExcerptLength = 240

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        Metrics
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

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("news store is required")
	}
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListPublished is the staff feed: pinned first, then newest.
func (s *Service) ListPublished(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Article], error) {
	filter.PublishedOnly = true
	filter.Status = ""
	return s.list(ctx, filter, page)
}

// List returns articles in any state for the CMS.
func (s *Service) List(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Article], error) {
	if filter.Status != "" && filter.Status != StatusDraft && filter.Status != StatusPublished {
		return paging.Result[*Article]{}, dErrors.New(dErrors.CodeValidation, "status must be draft or published")
	}
	return s.list(ctx, filter, page)
}

func (s *Service) list(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Article], error) {
	items, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return paging.Result[*Article]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list articles")
	}
	return paging.NewResult(items, total, page), nil
}

// GetPublished returns a published article by slug and counts the view.
// Drafts are reported as not found.
func (s *Service) GetPublished(ctx context.Context, slug string) (*Article, error) {
	a, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err, "article not found")
	}
	if !a.IsPublished() {
		return nil, dErrors.New(dErrors.CodeNotFound, "article not found")
	}
	views, err := s.store.IncrementViews(ctx, a.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count article view", "error", err, "article_id", a.ID)
	} else {
		a.Views = views
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Article, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "article not found")
	}
	return a, nil
}

func (s *Service) Categories(ctx context.Context) ([]CategoryCount, error) {
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	return cats, nil
}

// Create drafts an article authored by the caller, publishing it straight
// away when req.Publish is set.
func (s *Service) Create(ctx context.Context, req *ArticleRequest) (*Article, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	slug, err := pkgstrings.UniqueSlug(pkgstrings.Slugify(req.Title), func(candidate string) (bool, error) {
		return s.store.SlugExists(ctx, candidate)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive slug")
	}
	now := requestcontext.Now(ctx)
	a := &Article{
		ID:        uuid.New(),
		Slug:      slug,
		Status:    StatusDraft,
		CreatedAt: now,
	}
	if principal, ok := requestcontext.PrincipalFrom(ctx); ok {
		a.AuthorID = principal.UserID
		a.AuthorName = principal.Name
	}
	if err := apply(a, req); err != nil {
		return nil, err
	}
	a.UpdatedAt = now
	if req.Publish {
		a.Publish(now)
	}
	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an article with this slug already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create article")
	}
	s.logAudit(ctx, audit.EventNewsCreated, a, "title", a.Title)
	if a.IsPublished() {
		s.observePublished(ctx, a)
	}
	return a, nil
}

// Update replaces the editable fields. The slug is kept so links stay valid.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *ArticleRequest) (*Article, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "article not found")
	}
	if err := apply(a, req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	a.UpdatedAt = now
	wasPublished := a.IsPublished()
	if req.Publish && !wasPublished {
		a.Publish(now)
	}
	if err := s.store.Update(ctx, a); err != nil {
		return nil, translate(err, "article not found")
	}
	s.logAudit(ctx, audit.EventNewsUpdated, a, "title", a.Title)
	if a.IsPublished() && !wasPublished {
		s.observePublished(ctx, a)
	}
	return a, nil
}

func (s *Service) Publish(ctx context.Context, id uuid.UUID) (*Article, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "article not found")
	}
	if a.IsPublished() {
		return a, nil
	}
	a.Publish(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, a); err != nil {
		return nil, translate(err, "article not found")
	}
	s.observePublished(ctx, a)
	return a, nil
}

func (s *Service) Unpublish(ctx context.Context, id uuid.UUID) (*Article, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "article not found")
	}
	if !a.IsPublished() {
		return a, nil
	}
	a.Unpublish(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, a); err != nil {
		return nil, translate(err, "article not found")
	}
	s.logAudit(ctx, audit.EventNewsUnpublished, a)
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err, "article not found")
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventNewsDeleted, "news", id.String())
	return nil
}

func (s *Service) observePublished(ctx context.Context, a *Article) {
	if s.metrics != nil {
		s.metrics.ObservePublished("news")
	}
	s.logAudit(ctx, audit.EventNewsPublished, a, "slug", a.Slug)
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, a *Article, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "news", a.ID.String(), attrs...)
}

func apply(a *Article, req *ArticleRequest) error {
	html, err := richtext.Render(req.Body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "body could not be rendered")
	}
	a.Title = req.Title
	a.Body = req.Body
	a.BodyHTML = html
	a.Summary = req.Summary
	if a.Summary == "" {
		a.Summary = richtext.Excerpt(req.Body, summaryExcerptLength)
	}
	a.CoverImageURL = req.CoverImageURL
	a.Category = req.Category
	a.Tags = req.Tags
	a.Pinned = req.Pinned
	return nil
}

func translate(err error, notFound string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "an article with this slug already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "article store failure")
	}
}
