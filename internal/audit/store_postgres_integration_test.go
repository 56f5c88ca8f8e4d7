//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalaudit "intranet/internal/audit"
	"intranet/internal/platform/logger"
	"intranet/internal/platform/postgres"
	"intranet/pkg/platform/audit"
	"intranet/pkg/platform/paging"
	"intranet/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, pg.DB, logger.Discard()))
	store := internalaudit.NewPostgresStore(pg.DB)

	now := time.Now().UTC().Truncate(time.Microsecond)
	actor := uuid.New()
	require.NoError(t, store.Append(ctx, audit.Event{
		ID: uuid.New(), Action: "news_published", ActorID: actor, ActorEmail: "a@example.com",
		Resource: "news", ResourceID: "n-1", Details: map[string]string{"slug": "hello"},
		RequestID: "r-1", IP: "10.0.0.1", CreatedAt: now.Add(-time.Minute),
	}))
	require.NoError(t, store.Append(ctx, audit.Event{ID: uuid.New(), Action: "login_failed", CreatedAt: now}))

	events, total, err := store.List(ctx, audit.Filter{}, paging.Default())
	require.NoError(t, err)
	require.Equal(t, 2, total)
	assert.Equal(t, "login_failed", events[0].Action)
	assert.Equal(t, uuid.Nil, events[0].ActorID)
	assert.Nil(t, events[0].Details)
	assert.Equal(t, map[string]string{"slug": "hello"}, events[1].Details)

	events, total, err = store.List(ctx, audit.Filter{ActorID: actor, Resource: "news", Since: now.Add(-time.Hour)}, paging.Default())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "n-1", events[0].ResourceID)

	_, total, err = store.List(ctx, audit.Filter{Action: "missing"}, paging.Default())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPostgresStoreJoinsTransaction(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, pg.DB, logger.Discard()))
	store := internalaudit.NewPostgresStore(pg.DB)

	err := postgres.InTx(ctx, pg.DB, func(ctx context.Context) error {
		require.NoError(t, store.Append(ctx, audit.Event{ID: uuid.New(), Action: "user_created", CreatedAt: time.Now().UTC()}))
		return assert.AnError
	})
	require.Error(t, err)

	_, total, err := store.List(ctx, audit.Filter{}, paging.Default())
	require.NoError(t, err)
	assert.Zero(t, total)
}
