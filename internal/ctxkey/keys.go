// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// Used by HTTP middleware to store and retrieve the logger with the request_id field.
type LoggerKey struct{}

// SessionKey is the context key type for the per-request session handle.
type SessionKey struct{}

// LocaleKey is the context key type for the locale negotiated from Accept-Language.
type LocaleKey struct{}
