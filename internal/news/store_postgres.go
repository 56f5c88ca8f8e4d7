package news

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"intranet/internal/platform/postgres"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
)

// PostgresStore persists articles in news_articles. Tags use a TEXT[] column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const articleColumns = `id, slug, title, summary, body, body_html, cover_image_url, category,
	tags, status, pinned, author_id, author_name, views, published_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, a *Article) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO news_articles (`+articleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		a.ID, a.Slug, a.Title, a.Summary, a.Body, a.BodyHTML, a.CoverImageURL, a.Category,
		pq.Array(a.Tags), string(a.Status), a.Pinned, a.AuthorID, a.AuthorName, a.Views,
		a.PublishedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("slug %s: %w", a.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// Update leaves the view counter alone; IncrementViews owns it.
func (s *PostgresStore) Update(ctx context.Context, a *Article) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE news_articles SET
			slug = $2, title = $3, summary = $4, body = $5, body_html = $6,
			cover_image_url = $7, category = $8, tags = $9, status = $10, pinned = $11,
			published_at = $12, updated_at = $13
		WHERE id = $1`,
		a.ID, a.Slug, a.Title, a.Summary, a.Body, a.BodyHTML, a.CoverImageURL, a.Category,
		pq.Array(a.Tags), string(a.Status), a.Pinned, a.PublishedAt, a.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("slug %s: %w", a.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("update article: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("article %s: %w", a.ID, sentinel.ErrNotFound))
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM news_articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("article %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Article, error) {
	return s.findOne(ctx, `SELECT `+articleColumns+` FROM news_articles WHERE id = $1`, id)
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*Article, error) {
	return s.findOne(ctx, `SELECT `+articleColumns+` FROM news_articles WHERE slug = $1`, slug)
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM news_articles WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter, page paging.Page) ([]*Article, int, error) {
	var w postgres.Where
	if filter.PublishedOnly {
		w.Add("status = ?", string(StatusPublished))
	}
	if filter.Status != "" {
		w.Add("status = ?", string(filter.Status))
	}
	if filter.Category != "" {
		w.Add("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.Tag != "" {
		w.Add("? = ANY(tags)", filter.Tag)
	}
	if filter.Query != "" {
		w.Add("(title ILIKE ? OR summary ILIKE ? OR body ILIKE ?)", "%"+filter.Query+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_articles`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM news_articles%s
		ORDER BY pinned DESC, COALESCE(published_at, created_at) DESC, id
		LIMIT %s OFFSET %s`, articleColumns, where, w.Arg(page.Limit), w.Arg(page.Offset))
	articles, err := s.query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return articles, total, nil
}

func (s *PostgresStore) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var views int64
	err := s.db.QueryRowContext(ctx, `UPDATE news_articles SET views = views + 1 WHERE id = $1 RETURNING views`, id).Scan(&views)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, fmt.Errorf("article %s: %w", id, sentinel.ErrNotFound)
		}
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

func (s *PostgresStore) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM news_articles
		WHERE status = 'published' AND category <> ''
		GROUP BY category ORDER BY LOWER(category)`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	out := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountPublished(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news_articles WHERE status = 'published'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count published articles: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) TopByViews(ctx context.Context, n int) ([]*Article, error) {
	return s.query(ctx, `SELECT `+articleColumns+` FROM news_articles
		WHERE status = 'published'
		ORDER BY views DESC, COALESCE(published_at, created_at) DESC
		LIMIT $1`, n)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, key any) (*Article, error) {
	a, err := scanArticle(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("article %v: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find article: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()
	var out []*Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanArticle(row postgres.Scanner) (*Article, error) {
	var (
		a        Article
		status   string
		authorID uuid.NullUUID
	)
	if err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Summary, &a.Body, &a.BodyHTML, &a.CoverImageURL,
		&a.Category, pq.Array(&a.Tags), &status, &a.Pinned, &authorID, &a.AuthorName, &a.Views,
		&a.PublishedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.AuthorID = authorID.UUID
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return &a, nil
}
