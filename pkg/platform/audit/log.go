package audit

import (
	"context"
	"log/slog"

	"intranet/pkg/attrs"
	"intranet/pkg/requestcontext"
)

// Emitter accepts audit events. The audit module's Publisher implements it.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogAudit writes an audit log line and emits the matching event. Either the
// logger or the emitter may be nil.
func LogAudit(ctx context.Context, logger *slog.Logger, emitter Emitter, event AuditEvent, resource, resourceID string, attrList ...any) {
	if logger != nil {
		args := append([]any{
			"event", string(event),
			"log_type", "audit",
			"resource", resource,
			"resource_id", resourceID,
			"request_id", requestcontext.RequestID(ctx),
		}, attrList...)
		logger.InfoContext(ctx, string(event), args...)
	}
	if emitter == nil {
		return
	}
	err := emitter.Emit(ctx, Event{
		Action:     string(event),
		Resource:   resource,
		ResourceID: resourceID,
		Details:    attrs.ToDetails(attrList),
	})
	if err != nil && logger != nil {
		logger.ErrorContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
