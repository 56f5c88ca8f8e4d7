package chatbot

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

// PostgresStore keeps FAQs in faqs (keywords as TEXT[]) and the chat log in
// chat_queries.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const faqColumns = `id, question, answer, keywords, category, condition, priority, active, hits, created_at, updated_at`

func (s *PostgresStore) CreateFAQ(ctx context.Context, f *FAQ) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO faqs (`+faqColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		f.ID, f.Question, f.Answer, pq.Array(f.Keywords), f.Category, f.Condition,
		f.Priority, f.Active, f.Hits, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert faq: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateFAQ(ctx context.Context, f *FAQ) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE faqs SET question = $2, answer = $3, keywords = $4, category = $5, condition = $6,
			priority = $7, active = $8, updated_at = $9
		WHERE id = $1`,
		f.ID, f.Question, f.Answer, pq.Array(f.Keywords), f.Category, f.Condition,
		f.Priority, f.Active, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update faq: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("faq %s: %w", f.ID, sentinel.ErrNotFound))
}

func (s *PostgresStore) DeleteFAQ(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete faq: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("faq %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) FindFAQ(ctx context.Context, id uuid.UUID) (*FAQ, error) {
	f, err := scanFAQ(s.db.QueryRowContext(ctx, `SELECT `+faqColumns+` FROM faqs WHERE id = $1`, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("faq %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find faq: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) ListFAQs(ctx context.Context, filter Filter, page paging.Page) ([]*FAQ, int, error) {
	var w postgres.Where
	if filter.ActiveOnly {
		w.AddRaw("active")
	}
	if filter.Category != "" {
		w.Add("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.Query != "" {
		w.Add("(question ILIKE ? OR answer ILIKE ? OR array_to_string(keywords, ' ') ILIKE ?)", "%"+filter.Query+"%")
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faqs`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count faqs: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM faqs%s ORDER BY LOWER(category), LOWER(question) LIMIT %s OFFSET %s`,
		faqColumns, where, w.Arg(page.Limit), w.Arg(page.Offset))
	faqs, err := s.queryFAQs(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return faqs, total, nil
}

func (s *PostgresStore) ActiveFAQs(ctx context.Context) ([]*FAQ, error) {
	return s.queryFAQs(ctx, `SELECT `+faqColumns+` FROM faqs WHERE active ORDER BY created_at`)
}

func (s *PostgresStore) IncrementHits(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE faqs SET hits = hits + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment faq hits: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("faq %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) LogQuery(ctx context.Context, q *QueryLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_queries (id, user_id, message, matched_faq_id, score, answered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		q.ID, q.UserID, q.Message, q.MatchedFAQID, q.Score, q.Answered, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat query: %w", err)
	}
	return nil
}

func (s *PostgresStore) Unanswered(ctx context.Context, page paging.Page) ([]*QueryLog, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_queries WHERE NOT answered`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count unanswered: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, matched_faq_id, score, answered, created_at
		FROM chat_queries WHERE NOT answered
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list unanswered: %w", err)
	}
	defer rows.Close()
	out := []*QueryLog{}
	for rows.Next() {
		var q QueryLog
		if err := rows.Scan(&q.ID, &q.UserID, &q.Message, &q.MatchedFAQID, &q.Score, &q.Answered, &q.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan chat query: %w", err)
		}
		out = append(out, &q)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) QueryStats(ctx context.Context, since time.Time) (Stats, error) {
	var total, answered int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE answered)
		FROM chat_queries WHERE created_at >= $1`, since).Scan(&total, &answered)
	if err != nil {
		return Stats{}, fmt.Errorf("chat stats: %w", err)
	}
	return NewStats(total, answered), nil
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faqs WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count faqs: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) queryFAQs(ctx context.Context, query string, args ...any) ([]*FAQ, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query faqs: %w", err)
	}
	defer rows.Close()
	faqs := []*FAQ{}
	for rows.Next() {
		f, err := scanFAQ(rows)
		if err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		faqs = append(faqs, f)
	}
	return faqs, rows.Err()
}

func scanFAQ(row postgres.Scanner) (*FAQ, error) {
	var f FAQ
	if err := row.Scan(&f.ID, &f.Question, &f.Answer, pq.Array(&f.Keywords), &f.Category, &f.Condition,
		&f.Priority, &f.Active, &f.Hits, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	return &f, nil
}
