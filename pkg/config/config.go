package config

import (
	"time"

	"github.com/Proton-105/sigmapips-bot/pkg/redis"
)

// Config holds runtime configuration for the signal bot.
type Config struct {
	AppEnv      string            `mapstructure:"app_env"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Bot         BotConfig         `mapstructure:"bot"`
	Server      ServerConfig      `mapstructure:"server"`
	Redis       redis.Config      `mapstructure:"redis"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Chart       ChartConfig       `mapstructure:"chart"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Subscribers SubscribersConfig `mapstructure:"subscribers"`
}

// LoggerConfig controls log level, encoding and optional file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// SentryConfig toggles error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// BotConfig describes the Telegram connection and the signal destination chat.
type BotConfig struct {
	Token   string        `mapstructure:"token" validate:"required"`
	ChatID  int64         `mapstructure:"chat_id" validate:"required"`
	Mode    string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	Timeout time.Duration `mapstructure:"timeout"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig is only used when Bot.Mode is "webhook".
type WebhookConfig struct {
	Listen    string `mapstructure:"listen"`
	PublicURL string `mapstructure:"public_url" validate:"omitempty,url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// IdempotencyConfig controls callback de-duplication.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// ChartConfig points at the chart rendering service used for technical analysis.
type ChartConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeframe string        `mapstructure:"timeframe"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// JobsConfig toggles asynchronous signal delivery.
type JobsConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency" validate:"gte=0"`
}

// PreferencesConfig drives the /start menu where chats pick instruments and timeframes.
// Empty markets or timeframes fall back to the built-in catalog.
type PreferencesConfig struct {
	Enabled    bool           `mapstructure:"enabled"`
	PageSize   int            `mapstructure:"page_size" validate:"gte=0"`
	Markets    []MarketConfig `mapstructure:"markets" validate:"dive"`
	Timeframes []string       `mapstructure:"timeframes"`
}

type MarketConfig struct {
	Name        string   `mapstructure:"name" validate:"required"`
	Instruments []string `mapstructure:"instruments" validate:"required,min=1"`
}

// SubscribersConfig controls fan-out of signals to subscribed chats. Without a matcher URL
// the stored preferences decide who receives a signal.
type SubscribersConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MatcherURL string        `mapstructure:"matcher_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// IsWebhook reports whether updates are received through a webhook.
func (c BotConfig) IsWebhook() bool {
	return c.Mode == "webhook"
}
