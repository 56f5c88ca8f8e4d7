package directory

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

const employeeColumns = `id, first_name, last_name, email, phone, mobile, department, job_title,
	location, photo_url, manager_id, active, created_at, updated_at`

const employeeOrder = ` ORDER BY LOWER(last_name), LOWER(first_name), email`

func (s *PostgresStore) Create(ctx context.Context, e *Employee) error {
	_, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `INSERT INTO employees (`+employeeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.FirstName, e.LastName, e.Email, e.Phone, e.Mobile, e.Department, e.JobTitle,
		e.Location, e.PhotoURL, e.ManagerID, e.Active, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("employee %s: %w", e.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert employee: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, e *Employee) error {
	res, err := postgres.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE employees SET
			first_name = $2, last_name = $3, email = $4, phone = $5, mobile = $6, department = $7,
			job_title = $8, location = $9, photo_url = $10, manager_id = $11, active = $12, updated_at = $13
		WHERE id = $1`,
		e.ID, e.FirstName, e.LastName, e.Email, e.Phone, e.Mobile, e.Department,
		e.JobTitle, e.Location, e.PhotoURL, e.ManagerID, e.Active, e.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("employee %s: %w", e.Email, sentinel.ErrConflict)
		}
		return fmt.Errorf("update employee: %w", err)
	}
	return postgres.RequireRow(res, fmt.Errorf("employee %s: %w", e.ID, sentinel.ErrNotFound))
}

// Delete detaches direct reports and removes the row in one transaction.
func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		conn := postgres.Conn(ctx, s.db)
		if _, err := conn.ExecContext(ctx, `UPDATE employees SET manager_id = NULL WHERE manager_id = $1`, id); err != nil {
			return fmt.Errorf("detach reports: %w", err)
		}
		res, err := conn.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete employee: %w", err)
		}
		return postgres.RequireRow(res, fmt.Errorf("employee %s: %w", id, sentinel.ErrNotFound))
	})
}

// InTx runs fn in a transaction; store calls made with its context join it.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.InTx(ctx, s.db, fn)
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Employee, error) {
	return s.findOne(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*Employee, error) {
	return s.findOne(ctx, `SELECT `+employeeColumns+` FROM employees WHERE LOWER(email) = LOWER($1)`, address)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter, page paging.Page) ([]*Employee, int, error) {
	var w postgres.Where
	if filter.Active != nil {
		w.Add("active = ?", *filter.Active)
	}
	if filter.Department != "" {
		w.Add("LOWER(department) = LOWER(?)", filter.Department)
	}
	if filter.Location != "" {
		w.Add("LOWER(location) = LOWER(?)", filter.Location)
	}
	if filter.Query != "" {
		w.Add(`((first_name || ' ' || last_name) ILIKE ? OR email ILIKE ? OR job_title ILIKE ?
			OR department ILIKE ? OR phone ILIKE ? OR mobile ILIKE ?)`, "%"+filter.Query+"%")
	}
	var total int
	if err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM employees`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	where := w.SQL()
	query := fmt.Sprintf(`SELECT %s FROM employees%s%s LIMIT %s OFFSET %s`,
		employeeColumns, where, employeeOrder, w.Arg(page.Limit), w.Arg(page.Offset))
	items, err := s.query(ctx, query, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) DirectReports(ctx context.Context, managerID uuid.UUID) ([]*Employee, error) {
	return s.query(ctx, `SELECT `+employeeColumns+` FROM employees WHERE manager_id = $1 AND active`+employeeOrder, managerID)
}

func (s *PostgresStore) Departments(ctx context.Context) ([]DepartmentCount, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT department, COUNT(*) FROM employees
		WHERE active AND department <> ''
		GROUP BY department ORDER BY LOWER(department)`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()
	out := []DepartmentCount{}
	for rows.Next() {
		var d DepartmentCount
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := postgres.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM employees WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count employees: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, key any) (*Employee, error) {
	e, err := scanEmployee(postgres.Conn(ctx, s.db).QueryRowContext(ctx, query, key))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("employee %v: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find employee: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*Employee, error) {
	rows, err := postgres.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()
	var out []*Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEmployee(row postgres.Scanner) (*Employee, error) {
	var (
		e       Employee
		manager uuid.NullUUID
	)
	if err := row.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Phone, &e.Mobile, &e.Department,
		&e.JobTitle, &e.Location, &e.PhotoURL, &manager, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if manager.Valid {
		e.ManagerID = &manager.UUID
	}
	return &e, nil
}
