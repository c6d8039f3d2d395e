package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "TELEGRAM_TOKEN", "OWNER_CHAT_ID", "STORE_BACKEND", "DATABASE_URL",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "NOTIFICATIONS_ENABLED",
		"WEEKLY_REMINDER_TIME", "TIMEZONE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, DefaultDBName, cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.NotificationsEnabled)
	assert.Equal(t, "09:00", cfg.WeeklyReminderTime)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Zero(t, cfg.OwnerChatID)
}

func TestLoad_TokenRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	assert.EqualError(t, err, "TELEGRAM_TOKEN is required")
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "diary.toml")
	content := `
telegram_token = "from-file"
owner_chat_id = 42
store_backend = "redis"
notifications_enabled = false
weekly_reminder_time = "08:30"
timezone = "UTC"

[redis]
addr = "cache:6379"
db = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_ADDR", "override:6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, int64(42), cfg.OwnerChatID)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.False(t, cfg.NotificationsEnabled)
	assert.Equal(t, "08:30", cfg.WeeklyReminderTime)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "override:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_EnvParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("OWNER_CHAT_ID", "-100500")
	t.Setenv("NOTIFICATIONS_ENABLED", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("STORE_BACKEND", " Redis ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(-100500), cfg.OwnerChatID)
	assert.False(t, cfg.NotificationsEnabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"owner chat", "OWNER_CHAT_ID", "me"},
		{"redis db", "REDIS_DB", "-1"},
		{"notifications", "NOTIFICATIONS_ENABLED", "maybe"},
		{"backend", "STORE_BACKEND", "postgres"},
		{"reminder time", "WEEKLY_REMINDER_TIME", "9am"},
		{"reminder time without padding", "WEEKLY_REMINDER_TIME", "9:00"},
		{"timezone", "TIMEZONE", "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TELEGRAM_TOKEN", "t")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "t")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}
