package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.AllowedOrigins)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, 30, cfg.RateBurst)
	assert.Equal(t, 20, cfg.MaxConnsPerIP)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("WIZARD_ADDR", "127.0.0.1:9000")
	t.Setenv("WIZARD_STORE", "sqlite")
	t.Setenv("WIZARD_SQLITE_PATH", "/tmp/wizard.db")
	t.Setenv("WIZARD_SESSION_TTL", "1h")
	t.Setenv("WIZARD_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("WIZARD_LOG_FORMAT", "zap")
	t.Setenv("WIZARD_WEBHOOK_URL", "https://hooks.example/admissions")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/wizard.db", cfg.SQLitePath)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "zap", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown store", "WIZARD_STORE", "redis"},
		{"bad level", "WIZARD_LOG_LEVEL", "trace"},
		{"short secret", "WIZARD_CSRF_SECRET", "short"},
		{"bad webhook", "WIZARD_WEBHOOK_URL", "not a url"},
		{"bad duration", "WIZARD_SESSION_TTL", "soon"},
		{"bad addr", "WIZARD_ADDR", "nowhere"},
		{"zero burst", "WIZARD_RATE_BURST", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_Dotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WIZARD_LOG_LEVEL=debug\nWIZARD_MAX_SESSIONS=5\n"), 0o600))
	t.Setenv("WIZARD_MAX_SESSIONS", "7")
	// godotenv sets variables with os.Setenv; register cleanup for the new one.
	t.Setenv("WIZARD_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("WIZARD_LOG_LEVEL"))

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 7, cfg.MaxSessions, "environment wins over dotenv")
}
