package session

import (
	"context"
	"errors"
)

// SessionStore provides session persistence.
// This interface is defined in the domain to avoid circular imports.
// Implementations: in-memory (internal/adapter/outbound/memory).
type SessionStore interface {
	// Create stores a new record.
	Create(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID.
	// Returns ErrSessionNotFound if the record doesn't exist or is expired.
	Get(ctx context.Context, id string) (*Record, error)

	// Update saves changes to an existing record.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a record.
	Delete(ctx context.Context, id string) error
}

var (
	// ErrSessionNotFound is returned when a session doesn't exist or is expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrWriteFailed is returned when authentication attributes could not be stored.
	ErrWriteFailed = errors.New("session write failed")
	// ErrInvalidationFailed is returned when a session could not be invalidated.
	ErrInvalidationFailed = errors.New("session invalidation failed")
)

// Handle is the per-client session handle a request carries.
type Handle interface {
	// ID returns the session identifier.
	ID() string
	// Load reads the current attributes.
	Load(ctx context.Context) (Session, error)
	// Save replaces the attributes in one write.
	Save(ctx context.Context, s Session) error
	// Invalidate discards the session so later contacts start fresh.
	Invalidate(ctx context.Context) error
}
