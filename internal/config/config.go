package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Port     string `mapstructure:"PORT"`

	// Schedule Store / Recipe Catalog
	StoreURL               string        `mapstructure:"SCHEDULE_API_URL"`
	StoreAPIKey            string        `mapstructure:"SCHEDULE_API_KEY"`
	StoreRequestsPerSecond float64       `mapstructure:"SCHEDULE_API_RPS"`
	StoreTimeout           time.Duration `mapstructure:"SCHEDULE_API_TIMEOUT"`

	// Range cache. An empty RedisAddr selects the in-process cache.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int           `mapstructure:"REDIS_CACHE_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	DatabasePath string        `mapstructure:"DATABASE_PATH"`
	SessionTTL   time.Duration `mapstructure:"SESSION_TTL"`

	// Bound on one store mutation plus its reconciliation fetch.
	MutationTimeout time.Duration `mapstructure:"MUTATION_TIMEOUT"`

	// Meal types shown by default, from a comma separated MEAL_TYPES.
	DefaultMealTypes []string `mapstructure:"-"`

	// Telegram Config (optional for the CLI and API)
	TelegramBotToken       string  `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookURL     string  `mapstructure:"TELEGRAM_WEBHOOK_URL"`
	TelegramAllowedUserIDs []int64 `mapstructure:"-"`
	AdminTelegramID        int64   `mapstructure:"ADMIN_TELEGRAM_ID"`
}

// NewFromEnv creates a new Config from environment variables, optionally
// layered over a config.yaml found in the working directory or ./config.
func NewFromEnv() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8080")
	v.SetDefault("SCHEDULE_API_URL", "")
	v.SetDefault("SCHEDULE_API_KEY", "")
	v.SetDefault("SCHEDULE_API_RPS", 10)
	v.SetDefault("SCHEDULE_API_TIMEOUT", "10s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("DATABASE_PATH", "data/meal-scheduler.db")
	v.SetDefault("SESSION_TTL", "2h")
	v.SetDefault("MUTATION_TIMEOUT", "30s")
	v.SetDefault("MEAL_TYPES", "breakfast,lunch,dinner")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_WEBHOOK_URL", "")
	v.SetDefault("TELEGRAM_ALLOWED_USER_IDS", "")
	v.SetDefault("ADMIN_TELEGRAM_ID", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("SCHEDULE_API_URL environment variable not set")
	}

	cfg.DefaultMealTypes = splitList(v.GetString("MEAL_TYPES"))

	ids, err := parseIDs(v.GetString("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	cfg.TelegramAllowedUserIDs = ids

	return &cfg, nil
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
