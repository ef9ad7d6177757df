package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

// RegisterCustomValidators registers sessiongate-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("locale", validateLocale); err != nil {
		return fmt.Errorf("failed to register locale validator: %w", err)
	}
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateLocale accepts well-formed BCP 47 language tags.
func validateLocale(fl validator.FieldLevel) bool {
	_, err := language.Parse(fl.Field().String())
	return err == nil
}

// validateDuration accepts positive Go durations ("30s", "1h30m").
func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateUniqueUsers(); err != nil {
		return err
	}
	if err := c.validateUniqueProducts(); err != nil {
		return err
	}
	return c.validateIdleTTL()
}

// validateUniqueUsers rejects users listed more than once.
func (c *Config) validateUniqueUsers() error {
	seen := make(map[string]int, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		if first, exists := seen[u.Username]; exists {
			return fmt.Errorf("auth.users[%d]: duplicate username %q (first at auth.users[%d])", i, u.Username, first)
		}
		seen[u.Username] = i
	}
	return nil
}

// validateUniqueProducts rejects SKUs listed more than once.
func (c *Config) validateUniqueProducts() error {
	seen := make(map[string]int, len(c.Catalog.Products))
	for i, p := range c.Catalog.Products {
		if first, exists := seen[p.SKU]; exists {
			return fmt.Errorf("catalog.products[%d]: duplicate sku %q (first at catalog.products[%d])", i, p.SKU, first)
		}
		seen[p.SKU] = i
	}
	return nil
}

// validateIdleTTL ensures records outlive the logins they hold.
func (c *Config) validateIdleTTL() error {
	idle := Duration(c.Session.IdleTTL)
	timeout := time.Duration(c.Session.TimeoutMillis) * time.Millisecond
	if idle > 0 && idle < timeout {
		return fmt.Errorf("session.idle_ttl (%s) must not be shorter than session.timeout_ms (%s)", idle, timeout)
	}
	return nil
}

// fieldNames maps struct namespaces to their YAML keys.
var fieldNames = strings.NewReplacer(
	"Config.", "",
	"Server.", "server.",
	"Session.", "session.",
	"I18n.", "i18n.",
	"Auth.Users", "auth.users",
	"Catalog.Products", "catalog.products",
	"RateLimit.", "rate_limit.",
	"Telemetry.", "telemetry.",
	"HTTPAddr", "http_addr",
	"LogLevel", "log_level",
	"LogFormat", "log_format",
	"TimeoutMillis", "timeout_ms",
	"IdleTTL", "idle_ttl",
	"CleanupInterval", "cleanup_interval",
	"DefaultLocale", "default_locale",
	"PasswordHash", "password_hash",
	"Username", "username",
	"SKU", "sku",
	"PriceCents", "price_cents",
	"Name", "name",
	"LoginRate", "login_rate",
	"MaxTTL", "max_ttl",
	"Exporter", "exporter",
	"MetricInterval", "metric_interval",
)

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := fieldNames.Replace(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at least %s items", field, e.Param())
		}
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "locale":
		return fmt.Sprintf("%s must be a BCP 47 language tag (e.g. en, ko-KR)", field)
	case "duration":
		return fmt.Sprintf("%s must be a positive duration (e.g. 30s, 5m)", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
