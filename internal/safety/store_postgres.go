package safety

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"intranet/internal/platform/postgres"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const alertColumns = `id, title, message, severity, starts_at, ends_at, active, created_by, created_at, updated_at`

const talkColumns = `id, title, topic, summary, body, body_html, presenter, talk_date, attachment_url,
	published, created_at, updated_at`

func (s *PostgresStore) CreateAlert(ctx context.Context, a *Alert) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO safety_alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Title, a.Message, string(a.Severity), a.StartsAt, a.EndsAt, a.Active, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAlert(ctx context.Context, a *Alert) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE safety_alerts SET title = $2, message = $3, severity = $4, starts_at = $5, ends_at = $6,
			active = $7, updated_at = $8
		WHERE id = $1`,
		a.ID, a.Title, a.Message, string(a.Severity), a.StartsAt, a.EndsAt, a.Active, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("alert %s: %w", a.ID, sentinel.ErrNotFound))
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM safety_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("alert %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) FindAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM safety_alerts WHERE id = $1`, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("alert %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find alert: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter, page paging.Page) ([]*Alert, int, error) {
	var w postgres.Where
	if filter.Severity != "" {
		w.Add("severity = ?", string(filter.Severity))
	}
	if filter.ActiveOnly {
		w.AddRaw("active")
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM safety_alerts`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM safety_alerts%s ORDER BY created_at DESC, id LIMIT %s OFFSET %s`,
		alertColumns, where, w.Arg(page.Limit), w.Arg(page.Offset))
	alerts, err := s.queryAlerts(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

func (s *PostgresStore) LiveAlerts(ctx context.Context, now time.Time) ([]*Alert, error) {
	return s.queryAlerts(ctx, `SELECT `+alertColumns+` FROM safety_alerts
		WHERE active AND starts_at <= $1 AND (ends_at IS NULL OR ends_at > $1)
		ORDER BY CASE severity WHEN 'critical' THEN 3 WHEN 'warning' THEN 2 ELSE 1 END DESC, starts_at DESC, id`, now)
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, ack *AlertAcknowledgement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_acknowledgements (alert_id, user_id, acknowledged_at) VALUES ($1, $2, $3)
		ON CONFLICT (alert_id, user_id) DO NOTHING`, ack.AlertID, ack.UserID, ack.At)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("alert %s: %w", ack.AlertID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert alert acknowledgement: %w", err)
	}
	return nil
}

func (s *PostgresStore) AcknowledgedBy(ctx context.Context, userID uuid.UUID, alertIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	if len(alertIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(alertIDs))
	for i, id := range alertIDs {
		ids[i] = id.String()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT alert_id FROM alert_acknowledgements
		WHERE user_id = $1 AND alert_id = ANY($2::uuid[])`, userID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load alert acknowledgements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan alert acknowledgement: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountAcknowledgements(ctx context.Context, alertID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_acknowledgements WHERE alert_id = $1`, alertID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count alert acknowledgements: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AlertsBySeverity(ctx context.Context) ([]SeverityCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM safety_alerts GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("count alerts by severity: %w", err)
	}
	defer rows.Close()
	counts := make(map[Severity]int)
	for rows.Next() {
		var (
			sev string
			n   int
		)
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scan severity count: %w", err)
		}
		counts[Severity(sev)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return severityCounts(counts), nil
}

func (s *PostgresStore) CreateTalk(ctx context.Context, t *Talk) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO psi_talks (`+talkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Title, t.Topic, t.Summary, t.Body, t.BodyHTML, t.Presenter, t.TalkDate, t.AttachmentURL,
		t.Published, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert talk: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTalk(ctx context.Context, t *Talk) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE psi_talks SET title = $2, topic = $3, summary = $4, body = $5, body_html = $6, presenter = $7,
			talk_date = $8, attachment_url = $9, published = $10, updated_at = $11
		WHERE id = $1`,
		t.ID, t.Title, t.Topic, t.Summary, t.Body, t.BodyHTML, t.Presenter, t.TalkDate, t.AttachmentURL,
		t.Published, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update talk: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("talk %s: %w", t.ID, sentinel.ErrNotFound))
}

func (s *PostgresStore) DeleteTalk(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM psi_talks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete talk: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("talk %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) FindTalk(ctx context.Context, id uuid.UUID) (*Talk, error) {
	t, err := scanTalk(s.db.QueryRowContext(ctx, `SELECT `+talkColumns+` FROM psi_talks WHERE id = $1`, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("talk %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find talk: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTalks(ctx context.Context, filter TalkFilter, page paging.Page) ([]*Talk, int, error) {
	var w postgres.Where
	if filter.PublishedOnly {
		w.AddRaw("published")
	}
	if filter.Topic != "" {
		w.Add("LOWER(topic) = LOWER(?)", filter.Topic)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM psi_talks`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count talks: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM psi_talks%s ORDER BY talk_date DESC, id LIMIT %s OFFSET %s`,
		talkColumns, where, w.Arg(page.Limit), w.Arg(page.Offset))
	rows, err := s.db.QueryContext(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, fmt.Errorf("query talks: %w", err)
	}
	defer rows.Close()
	var out []*Talk
	for rows.Next() {
		t, err := scanTalk(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan talk: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) queryAlerts(ctx context.Context, query string, args ...any) ([]*Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()
	var out []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(row postgres.Scanner) (*Alert, error) {
	var (
		a         Alert
		severity  string
		createdBy uuid.NullUUID
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Message, &severity, &a.StartsAt, &a.EndsAt, &a.Active,
		&createdBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Severity = Severity(severity)
	if createdBy.Valid {
		a.CreatedBy = &createdBy.UUID
	}
	return &a, nil
}

func scanTalk(row postgres.Scanner) (*Talk, error) {
	var t Talk
	if err := row.Scan(&t.ID, &t.Title, &t.Topic, &t.Summary, &t.Body, &t.BodyHTML, &t.Presenter,
		&t.TalkDate, &t.AttachmentURL, &t.Published, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
