package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	API      APIConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	Dispatch DispatchConfig

	Extras env.EnvSet
}

type APIConfig struct {
	Port     int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

type DatabaseConfig struct {
	DSN string `env:"DATABASE_DSN"`
}

// RedisConfig is optional. An empty URL disables the distributed rate
// limiter and readiness stops checking Redis.
type RedisConfig struct {
	URL             string `env:"REDIS_URL"`
	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=100"`
}

type SMTPConfig struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT,default=587"`
	Username  string `env:"SMTP_USERNAME"`
	Password  string `env:"SMTP_PASSWORD"`
	UseTLS    bool   `env:"SMTP_USE_TLS,default=true"`
	FromEmail string `env:"FROM_EMAIL"`
	FromName  string `env:"FROM_NAME,default=LifeLine-ICT System"`
}

// SMSConfig is optional. Missing credentials produce a disabled SMS channel
// instead of a startup failure.
type SMSConfig struct {
	AccountSID  string `env:"SMS_ACCOUNT_SID"`
	AuthToken   string `env:"SMS_AUTH_TOKEN"`
	FromNumber  string `env:"SMS_FROM_NUMBER"`
	APIBaseURL  string `env:"SMS_API_BASE_URL,default=https://api.twilio.com"`
	CountryCode string `env:"SMS_COUNTRY_CODE,default=256"`
}

type DispatchConfig struct {
	SendTimeoutSeconds int `env:"SEND_TIMEOUT_SECONDS,default=10"`
	RetryBatchLimit    int `env:"RETRY_BATCH_LIMIT,default=100"`
}

func Load() (*Config, error) {
	var cfg Config

	extras, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	cfg.Extras = extras

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("DATABASE_DSN is required")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.API.Port)
	}
	if strings.TrimSpace(c.SMTP.Host) == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}
	if strings.TrimSpace(c.SMTP.FromEmail) == "" {
		return fmt.Errorf("FROM_EMAIL is required")
	}
	if c.Dispatch.SendTimeoutSeconds <= 0 {
		return fmt.Errorf("SEND_TIMEOUT_SECONDS must be positive, got %d", c.Dispatch.SendTimeoutSeconds)
	}
	if c.Redis.RateLimitPerSec <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SEC must be positive, got %d", c.Redis.RateLimitPerSec)
	}

	return nil
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Dispatch.SendTimeoutSeconds) * time.Second
}

func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.URL) != ""
}
