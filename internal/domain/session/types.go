// Package session manages per-client server-side sessions and the typed view
// of the authentication attributes stored in them.
package session

import "time"

// Session is the typed view of the authentication attributes of one client
// session. The zero value is an anonymous session.
type Session struct {
	// LoggedIn is true once a login has succeeded on this session.
	LoggedIn bool
	// LoginTimeMillis is the login instant in epoch milliseconds. Nil when absent.
	LoginTimeMillis *int64
	// Username of the authenticated user. Empty when not set. Informational only.
	Username string
}

// Authenticated reports whether both login attributes are present.
// LoggedIn without a login time is treated as not authenticated.
func (s Session) Authenticated() bool {
	return s.LoggedIn && s.LoginTimeMillis != nil
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	c := s
	if s.LoginTimeMillis != nil {
		ms := *s.LoginTimeMillis
		c.LoginTimeMillis = &ms
	}
	return c
}

// Record is what a SessionStore persists for one client.
type Record struct {
	// ID is a cryptographically random identifier, 32 bytes hex-encoded.
	ID string
	// Data holds the authentication attributes.
	Data Session
	// CreatedAt is when the record was created (UTC).
	CreatedAt time.Time
	// ExpiresAt is when the record becomes eligible for eviction if unused (UTC).
	ExpiresAt time.Time
	// LastAccess is the last time the record was read or written (UTC).
	LastAccess time.Time
}

// IsExpired checks if the record has been idle past its eviction time.
func (r *Record) IsExpired() bool {
	return time.Now().UTC().After(r.ExpiresAt)
}

// Touch updates LastAccess and pushes ExpiresAt out by idle.
func (r *Record) Touch(now time.Time, idle time.Duration) {
	r.LastAccess = now
	r.ExpiresAt = now.Add(idle)
}

// Copy returns a deep copy of r.
func (r *Record) Copy() *Record {
	c := *r
	c.Data = r.Data.Clone()
	return &c
}
