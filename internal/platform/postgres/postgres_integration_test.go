//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/platform/logger"
	"intranet/internal/platform/postgres"
	"intranet/pkg/testutil/containers"
)

func TestMigrateIsIdempotent(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	require.NoError(t, postgres.Migrate(ctx, pg.DB, logger.Discard()))
	require.NoError(t, postgres.Migrate(ctx, pg.DB, logger.Discard()))

	var count int
	require.NoError(t, pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 4, count)
}
