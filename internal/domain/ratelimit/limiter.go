// Package ratelimit throttles repeated attempts, such as logins, per key.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy defines how many attempts a key may make.
type Policy struct {
	// Rate is the number of attempts allowed per Period.
	Rate int
	// Burst is how many attempts may be made back to back. Defaults to Rate.
	Burst int
	// Period is the window Rate applies to.
	Period time.Duration
}

// Decision is the outcome of one attempt.
type Decision struct {
	Allowed bool
	// Remaining is how many further attempts are allowed right now.
	Remaining int
	// RetryAfter is how long to wait before the next attempt. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter counts attempts per key.
//
// Implementations use GCRA (Generic Cell Rate Algorithm), which spreads
// attempts evenly over time instead of resetting at window boundaries.
type Limiter interface {
	// Allow records an attempt for key and reports whether it may proceed.
	Allow(ctx context.Context, key string, policy Policy) (Decision, error)
	// Reset forgets every attempt recorded for key.
	Reset(ctx context.Context, key string) error
}

// KeyType identifies what a key is derived from.
type KeyType string

const (
	// KeyTypeIP keys attempts by client address.
	KeyTypeIP KeyType = "ip"
	// KeyTypeUsername keys attempts by the username being tried.
	KeyTypeUsername KeyType = "username"
)

// FormatKey returns a structured key: "login:{type}:{value}".
func FormatKey(keyType KeyType, value string) string {
	return fmt.Sprintf("login:%s:%s", keyType, value)
}
