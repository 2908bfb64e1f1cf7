package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.Equal(t, "file", cfg.SnapshotBackend)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, "local", cfg.AuthStrategy)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SNAPSHOT_BACKEND", "sqlite")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("SESSION_TTL", "10m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.SnapshotBackend)
	assert.Equal(t, "redis", cfg.SessionStore)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("SNAPSHOT_BACKEND", "postgres")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownSessionStore(t *testing.T) {
	t.Setenv("SESSION_STORE", "memcached")

	_, err := LoadConfig()
	assert.Error(t, err)
}
