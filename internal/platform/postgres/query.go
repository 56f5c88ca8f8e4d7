package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"intranet/pkg/platform/tx"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Where accumulates AND-ed clauses with numbered placeholders.
type Where struct {
	clauses []string
	args    []any
}

// Add appends clause, replacing every "?" with the placeholder bound to v.
func (w *Where) Add(clause string, v any) {
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", w.Arg(v)))
}

// AddRaw appends a clause without arguments.
func (w *Where) AddRaw(clause string) {
	w.clauses = append(w.clauses, clause)
}

// Arg binds v and returns its placeholder, e.g. for LIMIT and OFFSET.
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// SQL renders " WHERE ..." or "" when no clauses were added.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (w *Where) Args() []any {
	return w.args
}

// RequireRow maps an UPDATE or DELETE that touched nothing to notFound.
func RequireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn returns the transaction carried by ctx, or db when there is none.
func Conn(ctx context.Context, db *sql.DB) DBTX {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

// InTx runs fn with a transaction in its context, committing when fn returns
// nil. Nested calls join the outer transaction.
func InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx.WithTx(ctx, t)); err != nil {
		_ = t.Rollback()
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
