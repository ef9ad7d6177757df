package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Adapter gives typed access to the authentication attributes of a Handle.
// Reads never fail: anything unreadable counts as "not set".
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter creates an Adapter. A nil logger falls back to slog.Default().
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

// Get returns the typed session. Missing handles, missing records and load
// failures all yield the zero (anonymous) Session.
func (a *Adapter) Get(ctx context.Context, h Handle) Session {
	if h == nil {
		return Session{}
	}
	s, err := h.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			a.logger.Warn("session load failed, treating as anonymous",
				"session_id", h.ID(), "error", err)
		}
		return Session{}
	}
	return s
}

// SetAuthenticated records a successful login: loggedIn, login time and
// username are written together in a single save.
func (a *Adapter) SetAuthenticated(ctx context.Context, h Handle, username string, now time.Time) error {
	if h == nil {
		return fmt.Errorf("%w: no session handle", ErrWriteFailed)
	}
	ms := now.UnixMilli()
	s := Session{LoggedIn: true, LoginTimeMillis: &ms, Username: username}
	if err := h.Save(ctx, s); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Invalidate discards the session. Failures are logged and returned wrapped
// in ErrInvalidationFailed; callers are expected to continue regardless.
func (a *Adapter) Invalidate(ctx context.Context, h Handle) error {
	if h == nil {
		return nil
	}
	if err := h.Invalidate(ctx); err != nil {
		a.logger.Warn("session invalidation failed", "session_id", h.ID(), "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidationFailed, err)
	}
	return nil
}
