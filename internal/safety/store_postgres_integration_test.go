//go:build integration

package safety_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/platform/logger"
	"intranet/internal/platform/postgres"
	"intranet/internal/safety"
	"intranet/pkg/platform/paging"
	"intranet/pkg/platform/sentinel"
	"intranet/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()
	require.NoError(t, postgres.Migrate(ctx, pg.DB, logger.Discard()))
	store := safety.NewPostgresStore(pg.DB)

	now := time.Now().UTC().Truncate(time.Microsecond)
	alert := func(title string, sev safety.Severity, start time.Time, end *time.Time) *safety.Alert {
		a := &safety.Alert{
			ID:        uuid.New(),
			Title:     title,
			Message:   title,
			Severity:  sev,
			StartsAt:  start,
			EndsAt:    end,
			Active:    true,
			CreatedAt: start,
			UpdatedAt: start,
		}
		require.NoError(t, store.CreateAlert(ctx, a))
		return a
	}
	expired := now.Add(-time.Minute)

	info := alert("info", safety.SeverityInfo, now.Add(-time.Hour), nil)
	critical := alert("critical", safety.SeverityCritical, now.Add(-2*time.Hour), nil)
	alert("future", safety.SeverityWarning, now.Add(time.Hour), nil)
	alert("expired", safety.SeverityWarning, now.Add(-3*time.Hour), &expired)

	t.Run("live alerts", func(t *testing.T) {
		live, err := store.LiveAlerts(ctx, now)
		require.NoError(t, err)
		require.Len(t, live, 2)
		assert.Equal(t, critical.ID, live[0].ID)
		assert.Equal(t, info.ID, live[1].ID)
	})

	t.Run("acknowledgements", func(t *testing.T) {
		userID := uuid.New()
		ack := &safety.AlertAcknowledgement{AlertID: info.ID, UserID: userID, At: now}
		require.NoError(t, store.AcknowledgeAlert(ctx, ack))
		require.NoError(t, store.AcknowledgeAlert(ctx, ack))

		n, err := store.CountAcknowledgements(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		acked, err := store.AcknowledgedBy(ctx, userID, []uuid.UUID{info.ID, critical.ID})
		require.NoError(t, err)
		assert.True(t, acked[info.ID])
		assert.False(t, acked[critical.ID])
	})

	t.Run("severity counts", func(t *testing.T) {
		counts, err := store.AlertsBySeverity(ctx)
		require.NoError(t, err)
		assert.Equal(t, []safety.SeverityCount{
			{Severity: safety.SeverityCritical, Count: 1},
			{Severity: safety.SeverityWarning, Count: 2},
			{Severity: safety.SeverityInfo, Count: 1},
		}, counts)
	})

	t.Run("update and delete", func(t *testing.T) {
		info.Active = false
		require.NoError(t, store.UpdateAlert(ctx, info))
		got, err := store.FindAlert(ctx, info.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)

		items, total, err := store.ListAlerts(ctx, safety.AlertFilter{ActiveOnly: true}, paging.Default())
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, items, 3)

		require.NoError(t, store.DeleteAlert(ctx, info.ID))
		_, err = store.FindAlert(ctx, info.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, store.DeleteAlert(ctx, info.ID), sentinel.ErrNotFound)
	})

	t.Run("talks", func(t *testing.T) {
		talk := func(title string, day int, published bool) *safety.Talk {
			tk := &safety.Talk{
				ID:        uuid.New(),
				Title:     title,
				Topic:     "PPE",
				TalkDate:  time.Date(2026, 3, day, 8, 0, 0, 0, time.UTC),
				Published: published,
				CreatedAt: now,
				UpdatedAt: now,
			}
			require.NoError(t, store.CreateTalk(ctx, tk))
			return tk
		}
		talk("first", 1, true)
		second := talk("second", 8, true)
		talk("draft", 15, false)

		items, total, err := store.ListTalks(ctx, safety.TalkFilter{Topic: "ppe", PublishedOnly: true}, paging.Default())
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, second.ID, items[0].ID)

		second.Title = "renamed"
		require.NoError(t, store.UpdateTalk(ctx, second))
		got, err := store.FindTalk(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Title)
	})
}
