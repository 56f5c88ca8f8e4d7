package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	dErrors "intranet/pkg/domain-errors"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
)

// Service answers audit trail queries for administrators.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Service{store: store}, nil
}

// Query is the raw filter as given by the caller.
type Query struct {
	Action   string
	Resource string
	Actor    string
	// Days limits results to the trailing window; zero means no limit.
	Days int
}

func (s *Service) List(ctx context.Context, q Query, page paging.Page) (paging.Result[audit.Event], error) {
	filter := audit.Filter{Action: q.Action, Resource: q.Resource}
	if q.Actor != "" {
		id, err := uuid.Parse(q.Actor)
		if err != nil {
			return paging.Result[audit.Event]{}, dErrors.New(dErrors.CodeBadRequest, "actor must be a user id")
		}
		filter.ActorID = id
	}
	if q.Days < 0 || q.Days > 365 {
		return paging.Result[audit.Event]{}, dErrors.New(dErrors.CodeBadRequest, "days must be between 1 and 365")
	}
	if q.Days > 0 {
		filter.Since = requestcontext.Now(ctx).Add(-time.Duration(q.Days) * 24 * time.Hour)
	}
	events, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return paging.Result[audit.Event]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	return paging.NewResult(events, total, page), nil
}
