package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/auth/models"
	"intranet/pkg/platform/sentinel"
)

func TestInMemoryOTPStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := NewInMemory()

	_, err := store.Find(ctx, "a@corp.example", models.OTPPurposeLogin)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Save(ctx, &models.OTP{
		Email: "a@corp.example", Purpose: models.OTPPurposeLogin, CodeHash: "h1",
		ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now,
	}))

	_, err = store.Find(ctx, "a@corp.example", models.OTPPurposePasswordReset)
	require.ErrorIs(t, err, sentinel.ErrNotFound, "purposes are separate")

	n, err := store.IncrementAttempts(ctx, "a@corp.example", models.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Find(ctx, "a@corp.example", models.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "h1", got.CodeHash)
	assert.Equal(t, 1, got.Attempts)

	require.NoError(t, store.Save(ctx, &models.OTP{
		Email: "a@corp.example", Purpose: models.OTPPurposeLogin, CodeHash: "h2",
		ExpiresAt: now.Add(10 * time.Minute), CreatedAt: now,
	}))
	got, err = store.Find(ctx, "a@corp.example", models.OTPPurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CodeHash)
	assert.Zero(t, got.Attempts, "a new code resets attempts")

	require.NoError(t, store.Delete(ctx, "a@corp.example", models.OTPPurposeLogin))
	_, err = store.IncrementAttempts(ctx, "a@corp.example", models.OTPPurposeLogin)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryOTPStore_RecordSendWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := NewInMemory()

	for i := 1; i <= 3; i++ {
		n, err := store.RecordSend(ctx, "a@corp.example", now.Add(time.Duration(i)*time.Minute), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := store.RecordSend(ctx, "a@corp.example", now.Add(62*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "the first send has left the window")

	n, err = store.RecordSend(ctx, "b@corp.example", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
