package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the service, the bot and the jobs.
type Config struct {
	DatabaseURL         string        `mapstructure:"database_url"`
	ListenAddr          string        `mapstructure:"listen_addr"`
	Debug               bool          `mapstructure:"debug"`
	Timezone            string        `mapstructure:"timezone"`
	FirebaseProjectID   string        `mapstructure:"firebase_project_id"`
	AuthTestSecret      string        `mapstructure:"auth_test_secret"`
	StripeSecretKey     string        `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string        `mapstructure:"stripe_webhook_secret"`
	TrialDays           int           `mapstructure:"trial_days"`
	RedisURL            string        `mapstructure:"redis_url"`
	CleanupTime         string        `mapstructure:"cleanup_time"`
	ReportTime          string        `mapstructure:"report_time"`
	TelegramToken       string        `mapstructure:"telegram_token"`
	RateLimit           float64       `mapstructure:"rate_limit"`
	ProviderTimeout     time.Duration `mapstructure:"provider_timeout"`
	CORSOrigins         []string      `mapstructure:"cors_origins"`

	location *time.Location
}

var defaults = map[string]interface{}{
	"database_url":          "dailyplan.db",
	"listen_addr":           ":8080",
	"debug":                 false,
	"timezone":              "UTC",
	"firebase_project_id":   "",
	"auth_test_secret":      "",
	"stripe_secret_key":     "",
	"stripe_webhook_secret": "",
	"trial_days":            7,
	"redis_url":             "",
	"cleanup_time":          "03:00",
	"report_time":           "21:00",
	"telegram_token":        "",
	"rate_limit":            20.0,
	"provider_timeout":      "10s",
	"cors_origins":          []string{},
}

// Load reads configuration from defaults, an optional YAML file at path and
// environment variables, in increasing priority.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.CleanupTime = strings.TrimSpace(c.CleanupTime)
	c.ReportTime = strings.TrimSpace(c.ReportTime)

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORSOrigins = origins
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.location = loc
	if err := checkClock(c.CleanupTime); err != nil {
		return fmt.Errorf("CLEANUP_TIME: %w", err)
	}
	if err := checkClock(c.ReportTime); err != nil {
		return fmt.Errorf("REPORT_TIME: %w", err)
	}
	if c.TrialDays < 0 {
		return errors.New("TRIAL_DAYS must not be negative")
	}
	if c.RateLimit <= 0 {
		return errors.New("RATE_LIMIT must be positive")
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	return nil
}

// RequireServe checks the settings only the HTTP server needs.
func (c Config) RequireServe() error {
	if c.FirebaseProjectID == "" && c.AuthTestSecret == "" {
		return errors.New("FIREBASE_PROJECT_ID or AUTH_TEST_SECRET is required")
	}
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	return nil
}

// Location is the zone used for "today" and for job schedules.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func checkClock(raw string) error {
	if _, err := time.Parse("15:04", raw); err != nil {
		return fmt.Errorf("expected HH:MM, got %q", raw)
	}
	return nil
}
