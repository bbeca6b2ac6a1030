package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load loads and validates configuration from:
// 1. Default values
// 2. The config file at path (optional)
// 3. BOT_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults plus env must then suffice.
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("telegram.token", "")

	v.SetDefault("database.path", "analytics.db")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("parks.url", "https://cycling.data.tfl.gov.uk/CycleParking/cycle_parking.json")
	v.SetDefault("parks.cache_path", "cycleparks.json")
	v.SetDefault("parks.default_limit", 3)
	v.SetDefault("parks.max_limit", 10)
	v.SetDefault("parks.max_distance_meters", 1000.0)

	v.SetDefault("dispatch.send_interval", time.Second/30)

	v.SetDefault("analytics.request_log_interval", 10*time.Second)
	v.SetDefault("analytics.failure_flush_interval", time.Minute)
	v.SetDefault("analytics.failure_ttl", 24*time.Hour)
	v.SetDefault("analytics.error_queue_size", 256)
}
