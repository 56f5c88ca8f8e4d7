package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/platform/validation"
	"intranet/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, e *Employee) error
	Update(ctx context.Context, e *Employee) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	FindByEmail(ctx context.Context, address string) (*Employee, error)
	List(ctx context.Context, filter Filter, page paging.Page) ([]*Employee, int, error)
	DirectReports(ctx context.Context, managerID uuid.UUID) ([]*Employee, error)
	Departments(ctx context.Context) ([]DepartmentCount, error)
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// maxManagerDepth bounds the walk up the reporting chain when checking for
// cycles.
const maxManagerDepth = 64

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
		return nil, errors.New("directory store is required")
	}
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search lists active employees ordered by last then first name.
func (s *Service) Search(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Employee], error) {
	active := true
	filter.Active = &active
	return s.List(ctx, filter, page)
}

func (s *Service) List(ctx context.Context, filter Filter, page paging.Page) (paging.Result[*Employee], error) {
	items, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return paging.Result[*Employee]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search directory")
	}
	return paging.NewResult(items, total, page), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Employee, error) {
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return e, nil
}

func (s *Service) Departments(ctx context.Context) ([]DepartmentCount, error) {
	deps, err := s.store.Departments(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list departments")
	}
	return deps, nil
}

func (s *Service) DirectReports(ctx context.Context, id uuid.UUID) ([]*Employee, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, translate(err)
	}
	reports, err := s.store.DirectReports(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list direct reports")
	}
	if reports == nil {
		reports = []*Employee{}
	}
	return reports, nil
}

func (s *Service) Create(ctx context.Context, req *EmployeeRequest) (*Employee, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	e := &Employee{ID: uuid.New(), Active: true, CreatedAt: now, UpdatedAt: now}
	apply(e, req)
	if err := s.checkManager(ctx, e); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventEmployeeCreated, e, "email", e.Email)
	return e, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *EmployeeRequest) (*Employee, error) {
	req.Normalize()
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	e, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	apply(e, req)
	if err := s.checkManager(ctx, e); err != nil {
		return nil, err
	}
	e.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, e); err != nil {
		return nil, translate(err)
	}
	s.logAudit(ctx, audit.EventEmployeeUpdated, e, "email", e.Email)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err)
	}
	audit.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventEmployeeDeleted, "employee", id.String())
	return nil
}

// checkManager rejects unknown managers, self-management and reporting
// cycles.
func (s *Service) checkManager(ctx context.Context, e *Employee) error {
	if e.ManagerID == nil {
		return nil
	}
	if *e.ManagerID == e.ID {
		return dErrors.New(dErrors.CodeValidation, "an employee cannot manage themselves")
	}
	next := *e.ManagerID
	for range maxManagerDepth {
		m, err := s.store.FindByID(ctx, next)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				if next == *e.ManagerID {
					return dErrors.New(dErrors.CodeValidation, "manager not found")
				}
				return nil
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load manager")
		}
		if m.ManagerID == nil {
			return nil
		}
		if *m.ManagerID == e.ID {
			return dErrors.New(dErrors.CodeValidation, "manager assignment would create a reporting cycle")
		}
		next = *m.ManagerID
	}
	return dErrors.New(dErrors.CodeValidation, "reporting chain is too deep")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, e *Employee, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.auditPublisher, event, "employee", e.ID.String(), attrs...)
}

func apply(e *Employee, req *EmployeeRequest) {
	e.FirstName = req.FirstName
	e.LastName = req.LastName
	e.Email = req.Email
	e.Phone = req.Phone
	e.Mobile = req.Mobile
	e.Department = req.Department
	e.JobTitle = req.JobTitle
	e.Location = req.Location
	e.PhotoURL = req.PhotoURL
	e.ManagerID = req.ManagerID
	if req.Active != nil {
		e.Active = *req.Active
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "employee not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "an employee with this email already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "directory store failure")
	}
}
