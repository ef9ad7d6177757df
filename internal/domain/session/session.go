package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultIdleTimeout is how long an unused session record is kept.
const DefaultIdleTimeout = 2 * time.Hour

// Config holds session service configuration.
type Config struct {
	// IdleTimeout is how long a record survives without access. Default: 2 hours.
	IdleTimeout time.Duration
}

// SessionService manages session record lifecycle.
type SessionService struct {
	store   SessionStore
	timeout time.Duration
	now     func() time.Time
}

// NewSessionService creates a new SessionService with the given store and config.
func NewSessionService(store SessionStore, cfg Config) *SessionService {
	timeout := cfg.IdleTimeout
	if timeout == 0 {
		timeout = DefaultIdleTimeout
	}
	return &SessionService{
		store:   store,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Open resolves the session for id, creating an empty one when id is empty,
// unknown or expired. created reports whether a new record was made, in which
// case the caller must hand the new ID back to the client.
func (s *SessionService) Open(ctx context.Context, id string) (h Handle, created bool, err error) {
	if id != "" {
		rec, err := s.store.Get(ctx, id)
		switch {
		case err == nil:
			rec.Touch(s.now(), s.timeout)
			if err := s.store.Update(ctx, rec); err != nil && !errors.Is(err, ErrSessionNotFound) {
				return nil, false, fmt.Errorf("failed to touch session: %w", err)
			}
			return &storeHandle{svc: s, id: rec.ID}, false, nil
		case !errors.Is(err, ErrSessionNotFound):
			return nil, false, fmt.Errorf("failed to load session: %w", err)
		}
	}

	rec, err := s.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return &storeHandle{svc: s, id: rec.ID}, true, nil
}

// Create stores a new anonymous session record.
func (s *SessionService) Create(ctx context.Context) (*Record, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &Record{
		ID:         id,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.timeout),
		LastAccess: now,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return rec, nil
}

// Get retrieves a record by ID.
// Returns ErrSessionNotFound if the record doesn't exist.
func (s *SessionService) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Double-check expiration (store might not enforce it)
	if rec.IsExpired() {
		_ = s.store.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}

	return rec, nil
}

// Delete terminates a session.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// storeHandle is a Handle backed by a SessionStore record.
type storeHandle struct {
	svc *SessionService
	id  string
}

func (h *storeHandle) ID() string { return h.id }

func (h *storeHandle) Load(ctx context.Context) (Session, error) {
	rec, err := h.svc.Get(ctx, h.id)
	if err != nil {
		return Session{}, err
	}
	return rec.Data, nil
}

// Save writes data to the record. A record evicted since Open is recreated
// under the same ID so a login is never silently dropped.
func (h *storeHandle) Save(ctx context.Context, data Session) error {
	now := h.svc.now()
	rec, err := h.svc.store.Get(ctx, h.id)
	if errors.Is(err, ErrSessionNotFound) {
		rec = &Record{ID: h.id, CreatedAt: now}
		rec.Data = data.Clone()
		rec.Touch(now, h.svc.timeout)
		return h.svc.store.Create(ctx, rec)
	}
	if err != nil {
		return err
	}
	rec.Data = data.Clone()
	rec.Touch(now, h.svc.timeout)
	return h.svc.store.Update(ctx, rec)
}

func (h *storeHandle) Invalidate(ctx context.Context) error {
	return h.svc.store.Delete(ctx, h.id)
}

// GenerateSessionID creates a cryptographically random session ID.
// Returns 64 hex characters (32 bytes).
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}
