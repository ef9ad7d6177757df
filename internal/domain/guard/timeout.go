package guard

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/i18n"
)

// DefaultTimeoutMillis is the session timeout used when none is configured (30 minutes).
const DefaultTimeoutMillis int64 = 30 * 60 * 1000

// Timeout is the validated maximum age of a login, in milliseconds.
// Once built it never changes.
type Timeout struct {
	millis int64
}

// NewTimeout validates millis and returns a Timeout. Negative values are
// rejected with a *NegativeTimeoutError whose message is resolved for locale.
func NewTimeout(millis int64, messages i18n.Resolver, locale language.Tag) (Timeout, error) {
	if millis < 0 {
		if messages == nil {
			messages = i18n.KeyResolver
		}
		return Timeout{}, &NegativeTimeoutError{
			Value:   millis,
			Message: formatValue(messages.Resolve(i18n.KeyTimeoutNegative, locale), millis),
		}
	}
	return Timeout{millis: millis}, nil
}

// Millis returns the timeout in milliseconds.
func (t Timeout) Millis() int64 { return t.millis }

// Duration returns the timeout as a time.Duration.
func (t Timeout) Duration() time.Duration {
	return time.Duration(t.millis) * time.Millisecond
}

// NegativeTimeoutError is returned by NewTimeout for negative values.
type NegativeTimeoutError struct {
	Value   int64
	Message string
}

func (e *NegativeTimeoutError) Error() string { return e.Message }

// formatValue substitutes {value} in tmpl. Templates without the placeholder
// get the value appended so it is never lost.
func formatValue(tmpl string, v int64) string {
	s := strconv.FormatInt(v, 10)
	if strings.Contains(tmpl, "{value}") {
		return strings.ReplaceAll(tmpl, "{value}", s)
	}
	return tmpl + ": " + s
}
