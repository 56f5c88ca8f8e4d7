package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/requestcontext"
)

// Store persists audit events. It is append-only.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	List(ctx context.Context, filter audit.Filter, page paging.Page) ([]audit.Event, int, error)
}

type Metrics interface {
	ObserveAuditEvent(action string)
}

// Publisher enriches events from the request context and appends them to the
// store. When a forwarding queue is configured the stored event is also handed
// to the Worker without blocking the caller.
type Publisher struct {
	store   Store
	queue   chan audit.Event
	logger  *slog.Logger
	metrics Metrics
}

type PublisherOption func(*Publisher)

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithPublisherMetrics(m Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithForwarding enables the outbound queue with the given buffer size.
func WithForwarding(buffer int) PublisherOption {
	return func(p *Publisher) {
		if buffer <= 0 {
			buffer = 1
		}
		p.queue = make(chan audit.Event, buffer)
	}
}

func NewPublisher(store Store, opts ...PublisherOption) (*Publisher, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	p := &Publisher{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = requestcontext.Now(ctx).UTC()
	}
	if principal, ok := requestcontext.PrincipalFrom(ctx); ok {
		if event.ActorID == uuid.Nil {
			event.ActorID = principal.UserID
		}
		if event.ActorEmail == "" {
			event.ActorEmail = principal.Email
		}
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ObserveAuditEvent(event.Action)
	}
	if p.queue != nil {
		select {
		case p.queue <- event:
		default:
			p.logger.WarnContext(ctx, "audit forwarding queue full, dropping event",
				"event_id", event.ID, "action", event.Action)
		}
	}
	return nil
}

// Queue exposes the forwarding channel for the Worker. It is nil when
// forwarding is disabled.
func (p *Publisher) Queue() <-chan audit.Event {
	return p.queue
}

// Close stops accepting forwarded events. Emit must not be called afterwards.
func (p *Publisher) Close() {
	if p.queue != nil {
		close(p.queue)
	}
}
