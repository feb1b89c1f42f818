package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"ASEO_APP_NAME":                os.Getenv("ASEO_APP_NAME"),
		"ASEO_APP_ENV":                 os.Getenv("ASEO_APP_ENV"),
		"ASEO_APP_PORT":                os.Getenv("ASEO_APP_PORT"),
		"ASEO_DATABASE_HOST":           os.Getenv("ASEO_DATABASE_HOST"),
		"ASEO_DATABASE_PORT":           os.Getenv("ASEO_DATABASE_PORT"),
		"ASEO_DATABASE_USER":           os.Getenv("ASEO_DATABASE_USER"),
		"ASEO_DATABASE_PASSWORD":       os.Getenv("ASEO_DATABASE_PASSWORD"),
		"ASEO_DATABASE_DBNAME":         os.Getenv("ASEO_DATABASE_DBNAME"),
		"ASEO_DATABASE_SSLMODE":        os.Getenv("ASEO_DATABASE_SSLMODE"),
		"ASEO_DATABASE_MAX_OPEN_CONNS": os.Getenv("ASEO_DATABASE_MAX_OPEN_CONNS"),
		"ASEO_DATABASE_MAX_IDLE_CONNS": os.Getenv("ASEO_DATABASE_MAX_IDLE_CONNS"),
		"ASEO_AUTH_ADMIN_TOKEN":        os.Getenv("ASEO_AUTH_ADMIN_TOKEN"),
		"ASEO_BILLING_STRICT_RESERVE":  os.Getenv("ASEO_BILLING_STRICT_RESERVE"),
		"ASEO_BILLING_RETENTION_DAYS":  os.Getenv("ASEO_BILLING_RETENTION_DAYS"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "autoseo-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "postgres", cfg.Database.User)
		assert.Equal(t, "autoseo", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 90, cfg.Billing.RetentionDays)
		assert.Equal(t, 120, cfg.Billing.MaxCatchUpCycles)
		assert.False(t, cfg.Billing.StrictReserve)
	})

	t.Run("loads values from environment variables with ASEO prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_APP_NAME", "test-app")
		os.Setenv("ASEO_APP_ENV", "testing")
		os.Setenv("ASEO_APP_PORT", "9000")
		os.Setenv("ASEO_DATABASE_HOST", "testdb.local")
		os.Setenv("ASEO_DATABASE_PORT", "5433")
		os.Setenv("ASEO_DATABASE_USER", "testuser")
		os.Setenv("ASEO_DATABASE_PASSWORD", "testpass")
		os.Setenv("ASEO_DATABASE_DBNAME", "testdb")
		os.Setenv("ASEO_DATABASE_SSLMODE", "require")
		os.Setenv("ASEO_BILLING_STRICT_RESERVE", "true")
		os.Setenv("ASEO_BILLING_RETENTION_DAYS", "30")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testuser", cfg.Database.User)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "testdb", cfg.Database.DBName)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.True(t, cfg.Billing.StrictReserve)
		assert.Equal(t, 30, cfg.Billing.RetentionDays)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("ASEO_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("zero MaxOpenConns uses default", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_DATABASE_MAX_OPEN_CONNS", "0")

		cfg, err := Load()
		require.NoError(t, err)
		// 0 is treated as "not set", so default (25) is used
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("validates retention days", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_BILLING_RETENTION_DAYS", "-5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retention_days")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	originalEnv := map[string]string{
		"ASEO_APP_ENV":           os.Getenv("ASEO_APP_ENV"),
		"ASEO_AUTH_ADMIN_TOKEN":  os.Getenv("ASEO_AUTH_ADMIN_TOKEN"),
		"ASEO_DATABASE_PASSWORD": os.Getenv("ASEO_DATABASE_PASSWORD"),
		"ASEO_DATABASE_SSLMODE":  os.Getenv("ASEO_DATABASE_SSLMODE"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	setValidProductionBase := func() {
		os.Setenv("ASEO_APP_ENV", "production")
		os.Setenv("ASEO_AUTH_ADMIN_TOKEN", "this-is-a-very-secure-admin-token-32char")
		os.Setenv("ASEO_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ASEO_DATABASE_SSLMODE", "require")
	}

	t.Run("requires auth.admin_token in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_APP_ENV", "production")
		os.Setenv("ASEO_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ASEO_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.admin_token is required in production")
	})

	t.Run("requires auth.admin_token at least 32 characters in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_APP_ENV", "production")
		os.Setenv("ASEO_AUTH_ADMIN_TOKEN", "short-token")
		os.Setenv("ASEO_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ASEO_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.admin_token must be at least 32 characters")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_APP_ENV", "production")
		os.Setenv("ASEO_AUTH_ADMIN_TOKEN", "this-is-a-very-secure-admin-token-32char")
		os.Setenv("ASEO_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		os.Setenv("ASEO_APP_ENV", "production")
		os.Setenv("ASEO_AUTH_ADMIN_TOKEN", "this-is-a-very-secure-admin-token-32char")
		os.Setenv("ASEO_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ASEO_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		// URL-encoded password should be in the DSN
		assert.Contains(t, dsn, "pass%40word%23123")
	})

	t.Run("handles empty password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "",
			DBName:   "db",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.NotEmpty(t, dsn)
	})
}
