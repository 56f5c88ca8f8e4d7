package policy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

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

const policyColumns = `id, slug, title, category, summary, body, body_html, document_url, version,
	effective_date, status, requires_acknowledgement, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *Policy) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO policies (`+policyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Slug, p.Title, p.Category, p.Summary, p.Body, p.BodyHTML, p.DocumentURL, p.Version,
		p.EffectiveDate, string(p.Status), p.RequiresAcknowledgement, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("slug %s: %w", p.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, p *Policy) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE policies SET
			title = $2, category = $3, summary = $4, body = $5, body_html = $6, document_url = $7,
			version = $8, effective_date = $9, status = $10, requires_acknowledgement = $11, updated_at = $12
		WHERE id = $1`,
		p.ID, p.Title, p.Category, p.Summary, p.Body, p.BodyHTML, p.DocumentURL,
		p.Version, p.EffectiveDate, string(p.Status), p.RequiresAcknowledgement, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("policy %s: %w", p.ID, sentinel.ErrNotFound))
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("policy %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Policy, error) {
	return s.findOne(ctx, `SELECT `+policyColumns+` FROM policies WHERE id = $1`, id)
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*Policy, error) {
	return s.findOne(ctx, `SELECT `+policyColumns+` FROM policies WHERE slug = $1`, slug)
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM policies WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter, page paging.Page) ([]*Policy, int, error) {
	var w postgres.Where
	if filter.Status != "" {
		w.Add("status = ?", string(filter.Status))
	}
	if filter.Category != "" {
		w.Add("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.Query != "" {
		w.Add("(title ILIKE ? OR summary ILIKE ? OR body ILIKE ?)", "%"+filter.Query+"%")
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count policies: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM policies%s ORDER BY LOWER(category), LOWER(title) LIMIT %s OFFSET %s`,
		policyColumns, where, w.Arg(page.Limit), w.Arg(page.Offset))
	items, err := s.query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) Acknowledge(ctx context.Context, ack *Acknowledgement) (*Acknowledgement, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_acknowledgements (policy_id, user_id, version, acknowledged_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (policy_id, user_id, version) DO NOTHING`,
		ack.PolicyID, ack.UserID, ack.Version, ack.AcknowledgedAt,
	)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("policy %s: %w", ack.PolicyID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("insert acknowledgement: %w", err)
	}
	stored := &Acknowledgement{PolicyID: ack.PolicyID, UserID: ack.UserID, Version: ack.Version}
	err = s.db.QueryRowContext(ctx, `
		SELECT acknowledged_at FROM policy_acknowledgements
		WHERE policy_id = $1 AND user_id = $2 AND version = $3`,
		ack.PolicyID, ack.UserID, ack.Version,
	).Scan(&stored.AcknowledgedAt)
	if err != nil {
		return nil, fmt.Errorf("load acknowledgement: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Acknowledgements(ctx context.Context, policyID uuid.UUID, version int) ([]*Acknowledgement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT policy_id, user_id, version, acknowledged_at FROM policy_acknowledgements
		WHERE policy_id = $1 AND version = $2 ORDER BY acknowledged_at`, policyID, version)
	if err != nil {
		return nil, fmt.Errorf("list acknowledgements: %w", err)
	}
	defer rows.Close()
	var out []*Acknowledgement
	for rows.Next() {
		var a Acknowledgement
		if err := rows.Scan(&a.PolicyID, &a.UserID, &a.Version, &a.AcknowledgedAt); err != nil {
			return nil, fmt.Errorf("scan acknowledgement: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Pending(ctx context.Context, userID uuid.UUID) ([]*Policy, error) {
	return s.query(ctx, `SELECT `+policyColumns+` FROM policies p
		WHERE p.status = 'published' AND p.requires_acknowledgement
		AND NOT EXISTS (
			SELECT 1 FROM policy_acknowledgements a
			WHERE a.policy_id = p.id AND a.user_id = $1 AND a.version = p.version
		)
		ORDER BY LOWER(p.category), LOWER(p.title)`, userID)
}

func (s *PostgresStore) CountPublished(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies WHERE status = 'published'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count published policies: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AcknowledgementCounts(ctx context.Context) ([]AckCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.slug, p.title, p.version, COUNT(a.user_id)
		FROM policies p
		LEFT JOIN policy_acknowledgements a ON a.policy_id = p.id AND a.version = p.version
		WHERE p.status = 'published' AND p.requires_acknowledgement
		GROUP BY p.id, p.slug, p.title, p.version, p.category
		ORDER BY LOWER(p.category), LOWER(p.title)`)
	if err != nil {
		return nil, fmt.Errorf("count acknowledgements: %w", err)
	}
	defer rows.Close()
	out := []AckCount{}
	for rows.Next() {
		var c AckCount
		if err := rows.Scan(&c.PolicyID, &c.Slug, &c.Title, &c.Version, &c.Acknowledged); err != nil {
			return nil, fmt.Errorf("scan acknowledgement count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, query string, key any) (*Policy, error) {
	p, err := scanPolicy(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("policy %v: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find policy: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Policy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()
	var out []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPolicy(row postgres.Scanner) (*Policy, error) {
	var (
		p      Policy
		status string
	)
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Category, &p.Summary, &p.Body, &p.BodyHTML,
		&p.DocumentURL, &p.Version, &p.EffectiveDate, &status, &p.RequiresAcknowledgement,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = Status(status)
	return &p, nil
}
