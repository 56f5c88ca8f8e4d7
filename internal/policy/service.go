package policy

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

type Store interface {
	Create(ctx context.Context, p *Policy) error
	Update(ctx context.Context, p *Policy) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	FindBySlug(ctx context.Context, slug string) (*Policy, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, filter Filter, page paging.Page) ([]*Policy, int, error)
	Acknowledge(ctx context.Context, ack *Acknowledgement) (*Acknowledgement, error)
	Acknowledgements(ctx context.Context, policyID uuid.UUID, version int) ([]*Acknowledgement, error)
	Pending(ctx context.Context, userID uuid.UUID) ([]*Policy, error)
}

type Metrics interface {
	ObservePublished(kind string)
}

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
		return nil, errors.New("policy store is required")
	}
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) ListPublished(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Policy], error) {
	filter.Status = StatusPublished
	return s.list(ctx, filter, page)
}

func (s *Service) List(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Policy], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return paging.Result[*Policy]{}, dErrors.New(dErrors.CodeValidation, "status must be draft, published or archived")
	}
	return s.list(ctx, filter, page)
}

func (s *Service) list(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Policy], error) {
	items, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return paging.Result[*Policy]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return paging.NewResult(items, total, page), nil
}

func (s *Service) GetPublished(ctx context.Context, slug string) (*Policy, error) {
	p, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, translate(err)
	}
	if !p.IsPublished() {
		return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Policy, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, req *PolicyRequest) (*Policy, error) {
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
	p := &Policy{
		ID:        uuid.New(),
		Slug:      slug,
		Version:   1,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := apply(p, req); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventPolicyCreated, p, "title", p.Title)
	return p, nil
}

// Update edits a policy. Changing the body or document of a published policy
// starts a new version, so earlier acknowledgements no longer count.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *PolicyRequest) (*Policy, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	contentChanged, err := apply(p, req)
	if err != nil {
		return nil, err
	}
	if contentChanged && p.IsPublished() {
		p.Version++
	}
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventPolicyUpdated, p, "version", p.Version)
	return p, nil
}

func (s *Service) Publish(ctx context.Context, id uuid.UUID) (*Policy, error) {
	p, err := s.setStatus(ctx, id, StatusPublished)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObservePublished("policy")
	}
	s.logAudit(ctx, audit.EventPolicyPublished, p, "version", p.Version)
	return p, nil
}

func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*Policy, error) {
	p, err := s.setStatus(ctx, id, StatusArchived)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventPolicyArchived, p)
	return p, nil
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status Status) (*Policy, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if p.Status == status {
		return nil, dErrors.New(dErrors.CodeConflict, "policy is already "+string(status))
	}
	p.Status = status
	p.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, p); err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err)
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventPolicyDeleted, "policy", id.String())
	return nil
}

// Acknowledge records that userID read the current version. Repeating it
// returns the original acknowledgement.
func (s *Service) Acknowledge(ctx context.Context, userID, policyID uuid.UUID) (*Acknowledgement, error) {
	p, err := s.store.FindByID(ctx, policyID)
	if err != nil {
		return nil, translate(err)
	}
	if !p.IsPublished() {
		return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
	}
	ack, err := s.store.Acknowledge(ctx, &Acknowledgement{
		PolicyID:       p.ID,
		UserID:         userID,
		Version:        p.Version,
		AcknowledgedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventPolicyAcknowledged, p, "user_id", userID.String(), "version", p.Version)
	return ack, nil
}

func (s *Service) PendingAcknowledgements(ctx context.Context, userID uuid.UUID) ([]*Policy, error) {
	pending, err := s.store.Pending(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending policies")
	}
	if pending == nil {
		pending = []*Policy{}
	}
	return pending, nil
}

// Acknowledgements lists who acknowledged the policy's current version.
func (s *Service) Acknowledgements(ctx context.Context, policyID uuid.UUID) (*AckStatus, error) {
	p, err := s.store.FindByID(ctx, policyID)
	if err != nil {
		return nil, translate(err)
	}
	entries, err := s.store.Acknowledgements(ctx, p.ID, p.Version)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list acknowledgements")
	}
	if entries == nil {
		entries = []*Acknowledgement{}
	}
	return &AckStatus{PolicyID: p.ID, Version: p.Version, Acknowledged: len(entries), Entries: entries}, nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, p *Policy, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "policy", p.ID.String(), attrs...)
}

// apply copies req onto p and reports whether the body or document changed.
func apply(p *Policy, req *PolicyRequest) (bool, error) {
	html, err := richtext.Render(req.Body)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeValidation, "body could not be rendered")
	}
	changed := p.Body != req.Body || p.DocumentURL != req.DocumentURL
	p.Title = req.Title
	p.Category = req.Category
	p.Summary = req.Summary
	p.Body = req.Body
	p.BodyHTML = html
	p.DocumentURL = req.DocumentURL
	p.EffectiveDate = req.EffectiveDate
	p.RequiresAcknowledgement = req.RequiresAcknowledgement
	return changed, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "policy not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "a policy with this slug already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "policy store failure")
	}
}
