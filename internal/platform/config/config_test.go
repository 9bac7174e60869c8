package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3001", cfg.Server.Addr)
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Database.MaxRetries)
	assert.Equal(t, 10, cfg.Database.PoolSize)
	assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.FileMaxAge)
	assert.True(t, cfg.Retention.AutoCleanup)
	assert.False(t, cfg.Server.DebugEndpoints)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_SSL", "true")
	t.Setenv("DB_QUERY_TIMEOUT", "3s")
	t.Setenv("SKIP_DB_INIT", "yes")
	t.Setenv("AUTO_CLEANUP", "false")
	t.Setenv("DEBUG_ENDPOINTS", "1")
	t.Setenv("ADMIN_SECRET", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.True(t, cfg.Database.SSL)
	assert.Equal(t, 3*time.Second, cfg.Database.QueryTimeout)
	assert.True(t, cfg.Database.SkipInit)
	assert.False(t, cfg.Retention.AutoCleanup)
	assert.True(t, cfg.Server.DebugEndpoints)
	assert.Equal(t, "s3cret", cfg.Server.AdminSecret)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("DB_CONNECT_TIMEOUT", "ten seconds")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_CONNECT_TIMEOUT")
}

func TestFromEnvRejectsZeroRetries(t *testing.T) {
	t.Setenv("DB_MAX_RETRIES", "0")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvRejectsNonPositiveLimits(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CLEANUP_INTERVAL", "0s"},
		{"CLEANUP_INTERVAL", "-1h"},
		{"MAX_UPLOAD_BYTES", "0"},
		{"MAX_UPLOAD_BYTES", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_NAME=fromfile\nDB_USER=fileuser\n"), 0o600))

	t.Setenv("DB_NAME", "fromenv")
	t.Setenv("DB_USER", "")
	require.NoError(t, os.Unsetenv("DB_USER"))

	LoadDotEnv(path)

	assert.Equal(t, "fromenv", os.Getenv("DB_NAME"))
	assert.Equal(t, "fileuser", os.Getenv("DB_USER"))
}

func TestRecordAgeCutoff(t *testing.T) {
	now := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)
	cutoff := RecordAge{Months: 3}.Cutoff(now)
	assert.Equal(t, time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC), cutoff)
}
