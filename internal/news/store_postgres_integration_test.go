//go:build integration

package news_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/news"
	"intranet/internal/platform/logger"
	"intranet/internal/platform/postgres"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, pg.DB, logger.Discard()))
	store := news.NewPostgresStore(pg.DB)

	now := time.Now().UTC().Truncate(time.Microsecond)
	article := func(slug string, published, pinned bool, offset time.Duration) *news.Article {
		a := &news.Article{
			ID:        uuid.New(),
			Slug:      slug,
			Title:     slug,
			Category:  "HR",
			Tags:      []string{"benefits"},
			Status:    news.StatusDraft,
			Pinned:    pinned,
			CreatedAt: now.Add(offset),
			UpdatedAt: now.Add(offset),
		}
		if published {
			a.Publish(now.Add(offset))
		}
		require.NoError(t, store.Create(ctx, a))
		return a
	}

	older := article("older", true, false, -2*time.Hour)
	pinned := article("pinned", true, true, -5*time.Hour)
	newer := article("newer", true, false, -time.Hour)
	article("draft", false, false, 0)

	t.Run("slug conflict", func(t *testing.T) {
		err := store.Create(ctx, &news.Article{ID: uuid.New(), Slug: "older", Title: "dup", Status: news.StatusDraft, CreatedAt: now, UpdatedAt: now})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("published ordering", func(t *testing.T) {
		items, total, err := store.List(ctx, news.Filter{PublishedOnly: true}, paging.Default())
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, items, 3)
		assert.Equal(t, []uuid.UUID{pinned.ID, newer.ID, older.ID}, []uuid.UUID{items[0].ID, items[1].ID, items[2].ID})
		assert.Equal(t, []string{"benefits"}, items[0].Tags)
	})

	t.Run("tag and query filters", func(t *testing.T) {
		_, total, err := store.List(ctx, news.Filter{Tag: "benefits", Query: "NEW"}, paging.Default())
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("views and top", func(t *testing.T) {
		views, err := store.IncrementViews(ctx, older.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, views)

		top, err := store.TopByViews(ctx, 1)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, older.ID, top[0].ID)
	})

	t.Run("categories and counts", func(t *testing.T) {
		cats, err := store.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []news.CategoryCount{{Name: "HR", Count: 3}}, cats)

		n, err := store.CountPublished(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("update and delete", func(t *testing.T) {
		newer.Title = "Renamed"
		require.NoError(t, store.Update(ctx, newer))
		got, err := store.FindBySlug(ctx, "newer")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)

		require.NoError(t, store.Delete(ctx, newer.ID))
		_, err = store.FindByID(ctx, newer.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, newer.ID), sentinel.ErrNotFound)
	})
}
