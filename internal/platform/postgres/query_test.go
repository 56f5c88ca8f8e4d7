package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhere(t *testing.T) {
	var w Where
	assert.Empty(t, w.SQL())

	w.Add("status = ?", "published")
	w.AddRaw("active")
	w.Add("(title ILIKE ? OR summary ILIKE ?)", "%q%")
	limit := w.Arg(20)

	assert.Equal(t, " WHERE status = $1 AND active AND (title ILIKE $2 OR summary ILIKE $2)", w.SQL())
	assert.Equal(t, "$3", limit)
	assert.Equal(t, []any{"published", "%q%", 20}, w.Args())
}

func TestConnWithoutTx(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Conn(context.Background(), db))
}
