package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultPGHost        = "127.0.0.1"
	DefaultPGPort        = 5432
	DefaultPGUser        = "postgres"
	DefaultPGDatabase    = "wulang"
	DefaultPGSSLMode     = "disable"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultHistoryLimit  = 10
	DefaultMaxMediaBytes = 10 * 1024 * 1024
	DefaultRetentionDays = 90
)

// DefaultPendingTTL bounds how long an uncaptioned attachment waits for its
// follow-up question.
const DefaultPendingTTL = 24 * time.Hour

type Config struct {
	Log      LogConfig      `toml:"log"`
	Postgres PostgresConfig `toml:"postgres"`
	WhatsApp WhatsAppConfig `toml:"whatsapp"`
	Gemini   GeminiConfig   `toml:"gemini"`
	Chat     ChatConfig     `toml:"chat"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

type WhatsAppConfig struct {
	// StorePath is the sqlite file holding the whatsmeow session.
	StorePath string   `toml:"store_path"`
	AllowFrom []string `toml:"allow_from"`
}

type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// TimeoutSeconds applies to every backend call.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// StrictModeration switches the moderation verdict from the legacy
	// contains-"appropriate" match to an exact match.
	StrictModeration bool `toml:"strict_moderation"`
}

type ChatConfig struct {
	HistoryLimit      int    `toml:"history_limit"`
	MaxMediaBytes     int64  `toml:"max_media_bytes"`
	PendingTTLMinutes int    `toml:"pending_ttl_minutes"`
	RetentionDays     int    `toml:"retention_days"`
	BotName           string `toml:"bot_name"`
}

// PendingTTL returns the configured pending-attachment TTL.
func (c ChatConfig) PendingTTL() time.Duration {
	if c.PendingTTLMinutes <= 0 {
		return DefaultPendingTTL
	}
	return time.Duration(c.PendingTTLMinutes) * time.Minute
}

func (g GeminiConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// URL builds the pgx connection string.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Gemini: GeminiConfig{
			BaseURL: DefaultGeminiBaseURL,
			Model:   DefaultGeminiModel,
		},
		Chat: ChatConfig{
			HistoryLimit:  DefaultHistoryLimit,
			MaxMediaBytes: DefaultMaxMediaBytes,
			RetentionDays: DefaultRetentionDays,
			BotName:       "Wulang",
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
