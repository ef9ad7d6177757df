package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/account"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/ratelimit"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
)

// ErrTooManyAttempts is returned by Login when the caller is throttled.
var ErrTooManyAttempts = errors.New("too many login attempts")

// ThrottledError carries how long a throttled caller has to wait.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrTooManyAttempts, e.RetryAfter)
}

func (e *ThrottledError) Is(target error) bool { return target == ErrTooManyAttempts }

// AuthService logs users in and out of their sessions.
type AuthService struct {
	users    account.UserStore
	sessions *session.Adapter
	limiter  ratelimit.Limiter
	policy   ratelimit.Policy
	now      func() time.Time
	logger   *slog.Logger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithLoginThrottle limits login attempts per client address and per username.
func WithLoginThrottle(limiter ratelimit.Limiter, policy ratelimit.Policy) AuthOption {
	return func(s *AuthService) {
		s.limiter = limiter
		s.policy = policy
	}
}

// WithAuthClock overrides the time source used for login timestamps.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users account.UserStore, sessions *session.Adapter, logger *slog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credentials and marks h as authenticated.
//
// Returns *ThrottledError when throttled, account.ErrInvalidCredentials for
// bad credentials and session.ErrWriteFailed when the session could not be
// updated. Store failures are returned as is.
func (s *AuthService) Login(ctx context.Context, h session.Handle, clientIP, username, password string) (*account.User, error) {
	if err := s.throttle(ctx, clientIP, username); err != nil {
		return nil, err
	}

	user, err := account.Authenticate(ctx, s.users, username, password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			s.logger.Info("login rejected", "username", username, "client_ip", clientIP)
		}
		return nil, err
	}

	if err := s.sessions.SetAuthenticated(ctx, h, user.Username, s.now()); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, ratelimit.FormatKey(ratelimit.KeyTypeUsername, username)); err != nil {
			s.logger.Warn("failed to reset login throttle", "username", username, "error", err)
		}
	}

	s.logger.Info("login succeeded", "username", user.Username, "session_id", h.ID())
	return user, nil
}

// Logout invalidates h. The returned error is informational; the session is
// treated as logged out either way.
func (s *AuthService) Logout(ctx context.Context, h session.Handle) error {
	username := s.sessions.Get(ctx, h).Username
	if err := s.sessions.Invalidate(ctx, h); err != nil {
		return err
	}
	if username != "" {
		s.logger.Info("logout", "username", username)
	}
	return nil
}

// EnsureUser creates or updates a user from configuration.
func (s *AuthService) EnsureUser(ctx context.Context, username, passwordHash string) error {
	return s.users.Upsert(ctx, username, passwordHash)
}

func (s *AuthService) throttle(ctx context.Context, clientIP, username string) error {
	if s.limiter == nil {
		return nil
	}
	keys := []string{
		ratelimit.FormatKey(ratelimit.KeyTypeIP, clientIP),
		ratelimit.FormatKey(ratelimit.KeyTypeUsername, username),
	}
	for _, key := range keys {
		d, err := s.limiter.Allow(ctx, key, s.policy)
		if err != nil {
			// Fail open when the limiter itself errors.
			s.logger.Warn("login throttle unavailable", "key", key, "error", err)
			continue
		}
		if !d.Allowed {
			s.logger.Warn("login throttled", "key", key, "retry_after", d.RetryAfter)
			return &ThrottledError{RetryAfter: d.RetryAfter}
		}
	}
	return nil
}
