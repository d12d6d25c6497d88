package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultPGDatabase, cfg.Postgres.Database)
	assert.Equal(t, DefaultGeminiModel, cfg.Gemini.Model)
	assert.Equal(t, DefaultHistoryLimit, cfg.Chat.HistoryLimit)
	assert.Equal(t, int64(DefaultMaxMediaBytes), cfg.Chat.MaxMediaBytes)
	assert.Equal(t, DefaultRetentionDays, cfg.Chat.RetentionDays)
	assert.Equal(t, DefaultPendingTTL, cfg.Chat.PendingTTL())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[log]
level = "debug"

[postgres]
host = "db.internal"
database = "wulang_dev"

[gemini]
api_key = "test-key"
strict_moderation = true

[chat]
history_limit = 25
pending_ttl_minutes = 60
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "wulang_dev", cfg.Postgres.Database)
	assert.True(t, cfg.Gemini.StrictModeration)
	assert.Equal(t, 25, cfg.Chat.HistoryLimit)
	assert.Equal(t, time.Hour, cfg.Chat.PendingTTL())
	// untouched sections keep defaults
	assert.Equal(t, DefaultGeminiBaseURL, cfg.Gemini.BaseURL)
}

func TestPostgresURL(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5433/d?sslmode=disable", p.URL())
}
