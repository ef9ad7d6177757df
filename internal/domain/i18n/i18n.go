// Package i18n defines the message lookup port used to localize every
// user-facing string. Only message keys live in code; texts live in catalogs.
package i18n

import "golang.org/x/text/language"

// Message keys.
const (
	KeyNotLoggedIn        = "error.not_logged_in"
	KeySessionExpired     = "error.session_expired"
	KeyProcessSuccess     = "success.process"
	KeyDatabase           = "error.database"
	KeyInvalidArgument    = "error.invalid_argument"
	KeyOperationFailed    = "error.operation_failed"
	KeyTimeoutNegative    = "error.timeout_negative"
	KeyInternal           = "error.internal"
	KeyInvalidRequest     = "error.invalid_request"
	KeyInvalidCredentials = "error.invalid_credentials"
	KeyTooManyAttempts    = "error.too_many_attempts"
	KeyLoginSuccess       = "success.login"
	KeyLogoutSuccess      = "success.logout"
	KeySessionActive      = "success.session_active"
	KeyProductNotFound    = "error.product_not_found"
)

// Resolver maps a message key and locale to display text.
// Implementations must never fail: an unknown key resolves to something
// printable, typically the key itself.
type Resolver interface {
	Resolve(key string, locale language.Tag) string
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(key string, locale language.Tag) string

// Resolve calls f(key, locale).
func (f ResolverFunc) Resolve(key string, locale language.Tag) string {
	return f(key, locale)
}

// KeyResolver resolves every key to itself. Useful in tests and as a
// last-resort fallback when no catalog is configured.
var KeyResolver Resolver = ResolverFunc(func(key string, _ language.Tag) string {
	return key
})
