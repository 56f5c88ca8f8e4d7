package audit

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"intranet/internal/platform/postgres"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
)

// PostgresStore appends to audit_events. Append joins a transaction carried by
// ctx so an audit row commits with the change it describes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, action, actor_id, actor_email, resource, resource_id, details, request_id, ip, created_at`

func (s *PostgresStore) Append(ctx context.Context, e audit.Event) error {
	details, err := json.Marshal(detailsOrEmpty(e.Details))
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	var actor *uuid.UUID
	if e.ActorID != uuid.Nil {
		actor = &e.ActorID
	}
	_, err = postgres.Conn(ctx, s.db).ExecContext(ctx, `INSERT INTO audit_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Action, actor, e.ActorEmail, e.Resource, e.ResourceID, details, e.RequestID, e.IP, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter audit.Filter, page paging.Page) ([]audit.Event, int, error) {
	var w postgres.Where
	if filter.Action != "" {
		w.Add("action = ?", filter.Action)
	}
	if filter.ActorID != uuid.Nil {
		w.Add("actor_id = ?", filter.ActorID)
	}
	if filter.Resource != "" {
		w.Add("resource = ?", filter.Resource)
	}
	if !filter.Since.IsZero() {
		w.Add("created_at >= ?", filter.Since)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM audit_events%s ORDER BY created_at DESC, id LIMIT %s OFFSET %s`,
		eventColumns, where, w.Arg(page.Limit), w.Arg(page.Offset))
	rows, err := s.db.QueryContext(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	events := []audit.Event{}
	for rows.Next() {
		var (
			e       audit.Event
			actor   *uuid.UUID
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.Action, &actor, &e.ActorEmail, &e.Resource, &e.ResourceID,
			&details, &e.RequestID, &e.IP, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		if actor != nil {
			e.ActorID = *actor
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, 0, fmt.Errorf("decode audit details: %w", err)
		}
		if len(e.Details) == 0 {
			e.Details = nil
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

func detailsOrEmpty(d map[string]string) map[string]string {
	if d == nil {
		return map[string]string{}
	}
	return d
}
