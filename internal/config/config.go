// Package config loads server and CLI settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"course-market.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret    string `env:"JWT_SECRET"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	BcryptCost   int    `env:"BCRYPT_COST" envDefault:"12"`

	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`
	// AccessDays limits how long a paid enrollment grants access; 0 is lifetime.
	AccessDays int `env:"ACCESS_DAYS" envDefault:"0"`

	StrictCompletion    bool    `env:"STRICT_COMPLETION" envDefault:"false"`
	CompletionThreshold float64 `env:"COMPLETION_THRESHOLD" envDefault:"0.9"`

	// Progress reports per second per student, and the burst allowed.
	ProgressRate  float64 `env:"PROGRESS_RATE" envDefault:"2"`
	ProgressBurst float64 `env:"PROGRESS_BURST" envDefault:"10"`
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server needs and reports every
// problem at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.JWTSecret == "" {
		result = multierror.Append(result, errors.New("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		result = multierror.Append(result, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		result = multierror.Append(result, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}
	if c.AccessDays < 0 {
		result = multierror.Append(result, fmt.Errorf("ACCESS_DAYS must not be negative, got %d", c.AccessDays))
	}
	if c.CompletionThreshold <= 0 || c.CompletionThreshold > 1 {
		result = multierror.Append(result, fmt.Errorf("COMPLETION_THRESHOLD must be in (0, 1], got %g", c.CompletionThreshold))
	}
	if c.ProgressRate <= 0 || c.ProgressBurst < 1 {
		result = multierror.Append(result, errors.New("PROGRESS_RATE must be positive and PROGRESS_BURST at least 1"))
	}
	if _, err := c.SlogLevel(); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// AccessTTL is how long a successful payment grants access; 0 means no limit.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessDays) * 24 * time.Hour
}

// WebhookEnabled reports whether the payment webhook endpoint is mounted.
func (c Config) WebhookEnabled() bool {
	return c.PaymentWebhookSecret != ""
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q is not a valid level", c.LogLevel)
	}
	return level, nil
}
