package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                         int    `env:"PORT" envDefault:"8080"`
	DatabaseURL                  string `env:"DATABASE_URL,required"`
	RedisURL                     string `env:"REDIS_URL,required"`
	JWTSecret                    string `env:"JWT_SECRET,required"`
	LogLevel                     string `env:"LOG_LEVEL" envDefault:"info"`
	CompletionGraceMinutes       int    `env:"COMPLETION_GRACE_MINUTES" envDefault:"5"`
	ReviewReminderWindowDays     int    `env:"REVIEW_REMINDER_WINDOW_DAYS" envDefault:"7"`
	CompletionJobIntervalSeconds int    `env:"COMPLETION_JOB_INTERVAL_SECONDS" envDefault:"60"`
	CompletionLeaseSeconds       int    `env:"COMPLETION_LEASE_SECONDS" envDefault:"120"`
	CompletionRunTimeoutSeconds  int    `env:"COMPLETION_RUN_TIMEOUT_SECONDS" envDefault:"300"`
	AutoApproveReviews           bool   `env:"AUTO_APPROVE_REVIEWS" envDefault:"true"`
	JWTTTLHours                  int    `env:"JWT_TTL_HOURS" envDefault:"24"`
	RateLimitPerMin              int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	Production                   bool   `env:"PRODUCTION" envDefault:"false"`
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *Config) CompletionGrace() time.Duration {
	return time.Duration(c.CompletionGraceMinutes) * time.Minute
}

func (c *Config) ReviewReminderWindow() time.Duration {
	return time.Duration(c.ReviewReminderWindowDays) * 24 * time.Hour
}

func (c *Config) CompletionJobInterval() time.Duration {
	return time.Duration(c.CompletionJobIntervalSeconds) * time.Second
}

func (c *Config) CompletionLeaseTTL() time.Duration {
	return time.Duration(c.CompletionLeaseSeconds) * time.Second
}

func (c *Config) CompletionRunTimeout() time.Duration {
	return time.Duration(c.CompletionRunTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.CompletionGraceMinutes < 0 {
		return fmt.Errorf("COMPLETION_GRACE_MINUTES must not be negative")
	}
	if c.ReviewReminderWindowDays <= 0 {
		return fmt.Errorf("REVIEW_REMINDER_WINDOW_DAYS must be positive")
	}
	if c.CompletionJobIntervalSeconds <= 0 {
		return fmt.Errorf("COMPLETION_JOB_INTERVAL_SECONDS must be positive")
	}
	if c.CompletionLeaseSeconds <= 0 {
		return fmt.Errorf("COMPLETION_LEASE_SECONDS must be positive")
	}
	if c.JWTTTLHours <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters (generate with: openssl rand -base64 32)")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
