// Package config manages application configuration from config.yaml,
// BOT_* environment variables, and default values.
package config

import (
	"time"

	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all
// components of the bot: logging, Telegram transport, stores, the park
// source, dispatch pacing, and analytics flushing.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Parks     ParksConfig     `mapstructure:"parks"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds transport settings. BotInfo is populated at runtime
// after the bot identifies itself.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`

	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig holds the durable store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RedisConfig holds the ephemeral store settings.
type RedisConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// ParksConfig describes the point-of-interest source and query policy.
type ParksConfig struct {
	URL       string `mapstructure:"url" validate:"required,url"`
	CachePath string `mapstructure:"cache_path" validate:"required"`

	DefaultLimit int `mapstructure:"default_limit" validate:"min=1"`
	MaxLimit     int `mapstructure:"max_limit" validate:"min=1,gtefield=DefaultLimit"`

	// MaxDistanceMeters is the "nothing useful nearby" threshold applied by
	// the location handler, not by the index.
	MaxDistanceMeters float64 `mapstructure:"max_distance_meters" validate:"gt=0"`
}

// DispatchConfig tunes the outbound message loop.
type DispatchConfig struct {
	SendInterval time.Duration `mapstructure:"send_interval" validate:"gt=0"`
}

// AnalyticsConfig tunes the background flush loops.
type AnalyticsConfig struct {
	RequestLogInterval   time.Duration `mapstructure:"request_log_interval" validate:"gt=0"`
	FailureFlushInterval time.Duration `mapstructure:"failure_flush_interval" validate:"gt=0"`
	FailureTTL           time.Duration `mapstructure:"failure_ttl" validate:"gt=0"`
	ErrorQueueSize       int           `mapstructure:"error_queue_size" validate:"min=1"`
}
