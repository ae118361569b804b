package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"POS_APP_ENV", "POS_APP_PORT", "POS_DATABASE_URL", "DATABASE_URL", "POS_STORE_DRIVER",
		"POS_JWT_SECRET", "POS_SESSION_IDLE_TTL", "POS_HTTP_ALLOWED_ORIGINS", "POS_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults to the memory store without a database", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pharmacy-pos", cfg.App.Name)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, StoreMemory, cfg.Store.Driver)
		assert.Equal(t, 2*time.Hour, cfg.Session.IdleTTL)
		assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodyBytes)
		assert.Equal(t, ":8080", cfg.Addr())
	})

	t.Run("reads POS prefixed variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_APP_PORT", "9000")
		t.Setenv("POS_DATABASE_URL", "postgres://pos@localhost/pos")
		t.Setenv("POS_SESSION_IDLE_TTL", "30m")
		t.Setenv("POS_HTTP_ALLOWED_ORIGINS", "https://till.example, https://admin.example")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, StorePostgres, cfg.Store.Driver)
		assert.Equal(t, 30*time.Minute, cfg.Session.IdleTTL)
		assert.Equal(t, []string{"https://till.example", "https://admin.example"}, cfg.HTTP.AllowedOrigins)
	})

	t.Run("an explicit zero idle ttl disables sweeping", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_SESSION_IDLE_TTL", "0s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Zero(t, cfg.Session.IdleTTL)
		assert.Equal(t, 5*time.Minute, cfg.Session.SweepInterval)
	})

	t.Run("falls back to DATABASE_URL", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATABASE_URL", "postgres://legacy@localhost/pos")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "postgres://legacy@localhost/pos", cfg.Database.URL)
	})

	t.Run("postgres driver requires a url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_STORE_DRIVER", "postgres")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.url")
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_STORE_DRIVER", "redis")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.driver")
	})

	t.Run("production needs a long jwt secret", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_APP_ENV", "production")
		t.Setenv("POS_JWT_SECRET", "short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt.secret")
	})

	t.Run("development gets a default jwt secret", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, DevJWTSecret, cfg.JWT.Secret)
	})

	t.Run("production never gets the default secret", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("POS_APP_ENV", "production")

		_, err := Load()
		require.Error(t, err)
	})
}
