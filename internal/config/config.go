// Package config provides configuration types for sessiongate.
//
// Configuration is file based (sessiongate.yaml) with environment overrides.
// Users and products listed here are seeded into the database at startup;
// existing rows with the same username or SKU are updated.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/guard"
)

// Config is the top-level configuration for sessiongate.
type Config struct {
	// Server configures the HTTP server listener and logging.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Session configures login lifetime and session storage.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// I18n configures message localization.
	I18n I18nConfig `yaml:"i18n" mapstructure:"i18n"`

	// Database configures the SQLite database.
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Auth lists the users that may log in.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Catalog lists products to seed.
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`

	// RateLimit configures login throttling.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Telemetry configures OpenTelemetry export.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development features (debug logging, demo data, demo user).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
// Only HTTP is served; terminate TLS at a reverse proxy.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: "text" or "json". Defaults to "text".
	LogFormat string `yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=text json"`
}

// SessionConfig configures sessions.
type SessionConfig struct {
	// TimeoutMillis is how long a login stays valid, in milliseconds.
	// 0 expires a login as soon as any time has passed.
	// Defaults to 1800000 (30 minutes) when not set.
	TimeoutMillis int64 `yaml:"timeout_ms" mapstructure:"timeout_ms" validate:"min=0"`

	// IdleTTL is how long an unused session record is kept (e.g., "2h").
	// Defaults to "2h".
	IdleTTL string `yaml:"idle_ttl" mapstructure:"idle_ttl" validate:"omitempty,duration"`

	// CleanupInterval is how often idle records are swept (e.g., "1m").
	// Defaults to "1m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,duration"`

	// CookieName is the session cookie name. Defaults to "SESSIONID".
	CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`

	// CookieSecure marks the cookie Secure. Enable when served over HTTPS.
	CookieSecure bool `yaml:"cookie_secure" mapstructure:"cookie_secure"`
}

// I18nConfig configures localization.
type I18nConfig struct {
	// DefaultLocale is used when a request names no supported language.
	// Must be a BCP 47 tag. Defaults to "en".
	DefaultLocale string `yaml:"default_locale" mapstructure:"default_locale" validate:"omitempty,locale"`
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	// Path is the database file. ":memory:" keeps everything in memory.
	// Defaults to "sessiongate.db".
	Path string `yaml:"path" mapstructure:"path"`
}

// AuthConfig lists configured users.
type AuthConfig struct {
	Users []UserConfig `yaml:"users" mapstructure:"users" validate:"omitempty,dive"`
}

// UserConfig defines a user that may log in.
type UserConfig struct {
	// Username is the login name.
	Username string `yaml:"username" mapstructure:"username" validate:"required"`

	// PasswordHash is an Argon2id PHC string.
	// Generate with: sessiongate hash-password <password>
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash" validate:"required,startswith=$argon2id$"`
}

// CatalogConfig lists products to seed.
type CatalogConfig struct {
	Products []ProductConfig `yaml:"products" mapstructure:"products" validate:"omitempty,dive"`
}

// ProductConfig defines a catalog product.
type ProductConfig struct {
	SKU        string `yaml:"sku" mapstructure:"sku" validate:"required"`
	Name       string `yaml:"name" mapstructure:"name" validate:"required"`
	PriceCents int64  `yaml:"price_cents" mapstructure:"price_cents" validate:"min=0"`
}

// RateLimitConfig configures login throttling.
type RateLimitConfig struct {
	// Enabled turns login throttling on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// LoginRate is the maximum login attempts per minute per client address
	// and per username. Defaults to 10.
	LoginRate int `yaml:"login_rate" mapstructure:"login_rate" validate:"omitempty,min=1"`

	// CleanupInterval is how often to clean up expired entries (e.g., "5m").
	// Defaults to "5m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,duration"`

	// MaxTTL is the maximum age of an entry before removal (e.g., "1h").
	// Defaults to "1h".
	MaxTTL string `yaml:"max_ttl" mapstructure:"max_ttl" validate:"omitempty,duration"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	// Exporter is "none" or "stdout". Defaults to "none".
	Exporter string `yaml:"exporter" mapstructure:"exporter" validate:"omitempty,oneof=none stdout"`

	// MetricInterval is how often metrics are exported (e.g., "30s").
	// Defaults to "30s".
	MetricInterval string `yaml:"metric_interval" mapstructure:"metric_interval" validate:"omitempty,duration"`
}

// SetDevDefaults applies permissive defaults for development mode.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	// Provide a small demo catalog if none configured
	if len(c.Catalog.Products) == 0 {
		c.Catalog.Products = []ProductConfig{
			{SKU: "TEA-001", Name: "Green Tea", PriceCents: 450},
			{SKU: "TEA-002", Name: "Oolong Tea", PriceCents: 1250},
			{SKU: "MUG-001", Name: "Stoneware Mug", PriceCents: 1800},
		}
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults: bind to localhost only.
	// Users who need network access must explicitly set http_addr: ":8080" or "0.0.0.0:8080".
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}

	// 0 is a valid timeout, so only default when the key is absent.
	if !viper.IsSet("session.timeout_ms") && c.Session.TimeoutMillis == 0 {
		c.Session.TimeoutMillis = guard.DefaultTimeoutMillis
	}
	if c.Session.IdleTTL == "" {
		c.Session.IdleTTL = "2h"
	}
	if c.Session.CleanupInterval == "" {
		c.Session.CleanupInterval = "1m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "SESSIONID"
	}

	if c.I18n.DefaultLocale == "" {
		c.I18n.DefaultLocale = "en"
	}

	if c.Database.Path == "" {
		c.Database.Path = "sessiongate.db"
	}

	// Login throttling is enabled unless explicitly turned off in YAML/env.
	if !viper.IsSet("rate_limit.enabled") {
		c.RateLimit.Enabled = true
	}
	if c.RateLimit.LoginRate == 0 {
		c.RateLimit.LoginRate = 10
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}
	if c.RateLimit.MaxTTL == "" {
		c.RateLimit.MaxTTL = "1h"
	}

	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = "none"
	}
	if c.Telemetry.MetricInterval == "" {
		c.Telemetry.MetricInterval = "30s"
	}
}

// Duration parses a validated duration field. Empty or malformed values yield 0.
func Duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
