// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-a-32-byte-jwt-secret",
	"REPLACE_WITH_YOUR_OWN_JWT_SECRET_KEY",
	"secretsecretsecretsecretsecretsecret",
}

// MinJWTSecretLength is the minimum required length for the token signing secret.
const MinJWTSecretLength = 32

// MinAdminPasswordLength applies to the seeded admin password.
const MinAdminPasswordLength = 8

// MinWebhookSecretLength applies to the HMAC key for outbound webhooks.
const MinWebhookSecretLength = 16

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env        string `env:"AUTHX_ENV" envDefault:"development"`
	LogLevel   string `env:"AUTHX_LOG_LEVEL" envDefault:"info"`
	ServerHost string `env:"AUTHX_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"AUTHX_SERVER_PORT" envDefault:"8080"`
	BasePath   string `env:"AUTHX_BASE_PATH"` // Mount prefix for the HTTP API, e.g. /api

	// Database
	DBDriver string `env:"AUTHX_DB_DRIVER" envDefault:"sqlite"` // sqlite, postgres, mysql or memory
	DBDSN    string `env:"AUTHX_DB_DSN" envDefault:"./data/authx.db"`

	// Tokens
	JWTSecret string        `env:"AUTHX_JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"AUTHX_JWT_TTL" envDefault:"24h"`
	JWTIssuer string        `env:"AUTHX_JWT_ISSUER" envDefault:"authx"`

	// Password hashing work factor (argon2id)
	HashTime     uint32 `env:"AUTHX_HASH_TIME" envDefault:"2"`
	HashMemoryKB uint32 `env:"AUTHX_HASH_MEMORY_KB" envDefault:"19456"`
	HashThreads  uint8  `env:"AUTHX_HASH_THREADS" envDefault:"1"`

	// Cache configuration
	RedisURL     string        `env:"AUTHX_REDIS_URL"` // Optional Redis URL for the shared user cache
	CachePrefix  string        `env:"AUTHX_CACHE_PREFIX" envDefault:"authx:"`
	CacheTTL     time.Duration `env:"AUTHX_CACHE_TTL" envDefault:"5m"`
	CacheMaxSize int           `env:"AUTHX_CACHE_MAX_SIZE" envDefault:"10000"`

	// Event bus
	AMQPURL      string `env:"AUTHX_AMQP_URL"` // Optional RabbitMQ URL for domain events
	AMQPExchange string `env:"AUTHX_AMQP_EXCHANGE" envDefault:"authx.events"`

	// Outbound webhooks
	WebhookURLs    []string `env:"AUTHX_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret  string   `env:"AUTHX_WEBHOOK_SECRET"`
	WebhookEvents  []string `env:"AUTHX_WEBHOOK_EVENTS" envSeparator:","` // Empty sends every event
	WebhookWorkers int      `env:"AUTHX_WEBHOOK_WORKERS" envDefault:"3"`

	// HTTP
	CORSOrigins    []string `env:"AUTHX_CORS_ORIGINS" envSeparator:","`
	TrustedProxies []string `env:"AUTHX_TRUSTED_PROXIES" envSeparator:","`
	RateLimitRPS   float64  `env:"AUTHX_RATE_LIMIT_RPS" envDefault:"10"` // Per-IP requests per second, 0 disables
	RateLimitBurst int      `env:"AUTHX_RATE_LIMIT_BURST" envDefault:"20"`

	// Audit trail
	EventRetention time.Duration `env:"AUTHX_EVENT_RETENTION" envDefault:"720h"`
	GeoIPDBPath    string        `env:"AUTHX_GEOIP_DB"` // Optional GeoLite2-Country .mmdb for login country

	// Seeding configuration
	SeedAdmin     bool   `env:"AUTHX_SEED_ADMIN" envDefault:"false"`
	AdminName     string `env:"AUTHX_ADMIN_NAME" envDefault:"Administrator"`
	AdminEmail    string `env:"AUTHX_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword string `env:"AUTHX_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// UseAMQP returns true if domain events should be published to RabbitMQ.
func (c Config) UseAMQP() bool {
	return c.AMQPURL != ""
}

// UseWebhooks returns true if events should be posted to webhook endpoints.
func (c Config) UseWebhooks() bool {
	return len(c.WebhookURLs) > 0
}

// UseMemoryStore returns true when credentials are kept in process memory.
func (c Config) UseMemoryStore() bool {
	return strings.EqualFold(c.DBDriver, "memory")
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !hasMinimumEntropy(cfg.JWTSecret) {
		slog.Warn("AUTHX_JWT_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// Validate checks values that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("AUTHX_JWT_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinJWTSecretLength, len(c.JWTSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.JWTSecret == weak {
			return errors.New("AUTHX_JWT_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("AUTHX_JWT_TTL must be positive, got %s", c.JWTTTL)
	}

	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx", "mysql", "mariadb", "memory":
	default:
		return fmt.Errorf("AUTHX_DB_DRIVER %q is not supported (sqlite, postgres, mysql, memory)", c.DBDriver)
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("AUTHX_SERVER_PORT %d is out of range", c.ServerPort)
	}

	if c.BasePath != "" && (!strings.HasPrefix(c.BasePath, "/") || strings.HasSuffix(c.BasePath, "/")) {
		return fmt.Errorf("AUTHX_BASE_PATH %q must start with / and not end with /", c.BasePath)
	}

	if c.SeedAdmin && len(c.AdminPassword) < MinAdminPasswordLength {
		return fmt.Errorf("AUTHX_ADMIN_PASSWORD must be at least %d characters when AUTHX_SEED_ADMIN is set",
			MinAdminPasswordLength)
	}

	if c.UseWebhooks() && len(c.WebhookSecret) < MinWebhookSecretLength {
		return fmt.Errorf("AUTHX_WEBHOOK_SECRET must be at least %d bytes when AUTHX_WEBHOOK_URLS is set",
			MinWebhookSecretLength)
	}

	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		return errors.New("AUTHX_RATE_LIMIT_RPS must not be negative and AUTHX_RATE_LIMIT_BURST must be at least 1")
	}

	if c.HashTime == 0 || c.HashMemoryKB < 1024 || c.HashThreads == 0 {
		return errors.New("AUTHX_HASH_TIME, AUTHX_HASH_THREADS must be positive and AUTHX_HASH_MEMORY_KB at least 1024")
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
