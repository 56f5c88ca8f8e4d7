package audit

import (
	"context"
	"log/slog"

	"intranet/pkg/platform/audit"
)

// Sink receives events forwarded off the request path.
type Sink interface {
	Send(ctx context.Context, event audit.Event) error
}

// Worker drains the publisher queue into a Sink. Sink failures are logged and
// never retried; the store already holds the event.
type Worker struct {
	sink   Sink
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run blocks until ctx is cancelled or the inbox is closed.
func (w *Worker) Run(ctx context.Context) {
	if w.inbox == nil || w.sink == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.inbox:
			if !ok {
				return
			}
			if err := w.sink.Send(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to forward audit event",
					"event_id", event.ID, "action", event.Action, "error", err)
			}
		}
	}
}
