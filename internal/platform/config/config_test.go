package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Server.IsProduction())
	assert.False(t, cfg.Server.SecureCookies)
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "intranet_session", cfg.Auth.CookieName)
	assert.Equal(t, 5, cfg.Auth.OTPMaxAttempts)
	assert.Equal(t, int64(10<<20), cfg.CDN.MaxBytes)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("INTRANET_ADDR", ":9090")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CORS_ORIGINS", "https://intranet.example.com")
	t.Setenv("LOCKOUT_THRESHOLD", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://intranet.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5, cfg.Auth.LockoutThreshold)
}

func TestValidate(t *testing.T) {
	t.Run("production requires a real signing key", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SIGNING_KEY", "")
		cfg := FromEnv()
		assert.True(t, cfg.Server.SecureCookies)
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SIGNING_KEY must be set in production")
	})

	t.Run("production with explicit key passes", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SIGNING_KEY", "a-very-long-production-signing-key")
		require.NoError(t, FromEnv().Validate())
	})

	t.Run("seed admin needs a password", func(t *testing.T) {
		t.Setenv("SEED_ADMIN_EMAIL", "admin@example.com")
		t.Setenv("SEED_ADMIN_PASSWORD", "")
		require.Error(t, FromEnv().Validate())
	})
}
