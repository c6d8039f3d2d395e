package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	DefaultDBName       = "postpone_diary.db"
	DefaultReminderTime = "09:00"
)

// RedisConfig is used when StoreBackend is "redis".
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken        string      `toml:"telegram_token"`
	OwnerChatID          int64       `toml:"owner_chat_id"`
	StoreBackend         string      `toml:"store_backend"`
	DatabaseURL          string      `toml:"database_url"`
	Redis                RedisConfig `toml:"redis"`
	NotificationsEnabled bool        `toml:"notifications_enabled"`
	WeeklyReminderTime   string      `toml:"weekly_reminder_time"`
	Timezone             string      `toml:"timezone"`

	Location *time.Location `toml:"-"`
}

// Load reads configuration with sane defaults. Sources, lowest priority
// first: built-in defaults, the TOML file named by CONFIG_FILE, a .env file
// in the working directory, and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := readFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, finalize(&cfg)
}

func defaultConfig() Config {
	return Config{
		StoreBackend:         BackendSQLite,
		DatabaseURL:          DefaultDBName,
		Redis:                RedisConfig{Addr: "localhost:6379"},
		NotificationsEnabled: true,
		WeeklyReminderTime:   DefaultReminderTime,
	}
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.WeeklyReminderTime, "WEEKLY_REMINDER_TIME")
	setString(&cfg.Timezone, "TIMEZONE")

	if raw := env("OWNER_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("OWNER_CHAT_ID must be a number: %w", err)
		}
		cfg.OwnerChatID = id
	}
	if raw := env("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			return fmt.Errorf("REDIS_DB must be a non-negative number, got %q", raw)
		}
		cfg.Redis.DB = db
	}
	if raw := env("NOTIFICATIONS_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("NOTIFICATIONS_ENABLED must be true or false, got %q", raw)
		}
		cfg.NotificationsEnabled = enabled
	}
	return nil
}

func finalize(cfg *Config) error {
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendSQLite
	}
	if cfg.StoreBackend != BackendSQLite && cfg.StoreBackend != BackendRedis {
		return fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDBName
	}

	if cfg.WeeklyReminderTime == "" {
		cfg.WeeklyReminderTime = DefaultReminderTime
	}
	if err := validClock(cfg.WeeklyReminderTime); err != nil {
		return err
	}

	cfg.Location = time.Local
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

func validClock(raw string) error {
	t, err := time.Parse("15:04", raw)
	if err != nil || t.Format("15:04") != raw {
		return fmt.Errorf("WEEKLY_REMINDER_TIME must look like 09:00, got %q", raw)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if value := env(key); value != "" {
		*dst = value
	}
}
