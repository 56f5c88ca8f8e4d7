package applink

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"intranet/internal/platform/postgres"
	"intranet/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const linkColumns = `id, name, url, icon_url, description, category, sort_order, visible, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, l *AppLink) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO app_links (`+linkColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.Name, l.URL, l.IconURL, l.Description, l.Category, l.SortOrder, l.Visible, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert app link: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, l *AppLink) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE app_links SET name = $2, url = $3, icon_url = $4, description = $5, category = $6,
			sort_order = $7, visible = $8, updated_at = $9
		WHERE id = $1`,
		l.ID, l.Name, l.URL, l.IconURL, l.Description, l.Category, l.SortOrder, l.Visible, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update app link: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("app link %s: %w", l.ID, sentinel.ErrNotFound))
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM app_links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete app link: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("app link %s: %w", id, sentinel.ErrNotFound))
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*AppLink, error) {
	l, err := scanLink(s.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM app_links WHERE id = $1`, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("app link %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find app link: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*AppLink, error) {
	var w postgres.Where
	if filter.VisibleOnly {
		w.AddRaw("visible")
	}
	if filter.Category != "" {
		w.Add("LOWER(category) = LOWER(?)", filter.Category)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM app_links`+w.SQL()+
		` ORDER BY sort_order, LOWER(name), id`, w.Args()...)
	if err != nil {
		return nil, fmt.Errorf("list app links: %w", err)
	}
	defer rows.Close()
	links := []*AppLink{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan app link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *PostgresStore) SetSortOrders(ctx context.Context, orders map[uuid.UUID]int) error {
	return postgres.InTx(ctx, s.db, func(ctx context.Context) error {
		conn := postgres.Conn(ctx, s.db)
		for id, order := range orders {
			res, err := conn.ExecContext(ctx, `UPDATE app_links SET sort_order = $2 WHERE id = $1`, id, order)
			if err != nil {
				return fmt.Errorf("reorder app link: %w", err)
			}
			if err := postgres.RequireRow(res, fmt.Errorf("app link %s: %w", id, sentinel.ErrNotFound)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) MaxSortOrder(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order), -1) FROM app_links`).Scan(&n); err != nil {
		return 0, fmt.Errorf("max sort order: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountVisible(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM app_links WHERE visible`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count app links: %w", err)
	}
	return n, nil
}

func scanLink(row postgres.Scanner) (*AppLink, error) {
	var l AppLink
	if err := row.Scan(&l.ID, &l.Name, &l.URL, &l.IconURL, &l.Description, &l.Category,
		&l.SortOrder, &l.Visible, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
