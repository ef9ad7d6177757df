package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/account"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/ratelimit"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockUserStore struct {
	mu    sync.Mutex
	users map[string]*account.User
}

func (m *mockUserStore) GetByUsername(_ context.Context, username string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, account.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserStore) Upsert(_ context.Context, username, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[username] = &account.User{Username: username, PasswordHash: hash}
	return nil
}

// memHandle is a session.Handle held entirely in memory.
type memHandle struct {
	data          session.Session
	saveErr       error
	invalidateErr error
}

func (h *memHandle) ID() string { return "mem" }

func (h *memHandle) Load(context.Context) (session.Session, error) { return h.data, nil }

func (h *memHandle) Save(_ context.Context, s session.Session) error {
	if h.saveErr != nil {
		return h.saveErr
	}
	h.data = s
	return nil
}

func (h *memHandle) Invalidate(context.Context) error {
	if h.invalidateErr != nil {
		return h.invalidateErr
	}
	h.data = session.Session{}
	return nil
}

// countingLimiter allows a fixed number of attempts per key.
type countingLimiter struct {
	limit  int
	counts map[string]int
	resets []string
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, key string, _ ratelimit.Policy) (ratelimit.Decision, error) {
	if l.err != nil {
		return ratelimit.Decision{}, l.err
	}
	l.counts[key]++
	if l.counts[key] > l.limit {
		return ratelimit.Decision{RetryAfter: 30 * time.Second}, nil
	}
	return ratelimit.Decision{Allowed: true, Remaining: l.limit - l.counts[key]}, nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	delete(l.counts, key)
	l.resets = append(l.resets, key)
	return nil
}

func newUserStore(t *testing.T) *mockUserStore {
	t.Helper()
	hash, err := account.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return &mockUserStore{users: map[string]*account.User{
		"alice": {ID: 1, Username: "alice", PasswordHash: hash},
	}}
}

func TestAuthService_Login(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	adapter := session.NewAdapter(discardLogger)
	svc := NewAuthService(newUserStore(t), adapter, discardLogger, WithAuthClock(func() time.Time { return now }))
	h := &memHandle{}

	user, err := svc.Login(context.Background(), h, "10.0.0.1", "alice", "correct horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("user = %q, want alice", user.Username)
	}
	got := adapter.Get(context.Background(), h)
	if !got.Authenticated() || got.Username != "alice" || *got.LoginTimeMillis != now.UnixMilli() {
		t.Errorf("session = %+v, want alice logged in at %d", got, now.UnixMilli())
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	writeErr := errors.New("store read-only")
	tests := []struct {
		name     string
		username string
		password string
		handle   *memHandle
		want     error
	}{
		{"wrong password", "alice", "battery staple", &memHandle{}, account.ErrInvalidCredentials},
		{"unknown user", "mallory", "correct horse", &memHandle{}, account.ErrInvalidCredentials},
		{"session write fails", "alice", "correct horse", &memHandle{saveErr: writeErr}, session.ErrWriteFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(newUserStore(t), session.NewAdapter(discardLogger), discardLogger)

			_, err := svc.Login(context.Background(), tt.handle, "10.0.0.1", tt.username, tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Login() error = %v, want %v", err, tt.want)
			}
			if tt.handle.data.LoggedIn {
				t.Error("session marked logged in after a failed login")
			}
		})
	}
}

func TestAuthService_LoginThrottle(t *testing.T) {
	limiter := &countingLimiter{limit: 2, counts: map[string]int{}}
	svc := NewAuthService(newUserStore(t), session.NewAdapter(discardLogger), discardLogger,
		WithLoginThrottle(limiter, ratelimit.Policy{Rate: 2, Period: time.Minute}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Login(ctx, &memHandle{}, "10.0.0.9", "alice", "nope"); !errors.Is(err, account.ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i, err)
		}
	}

	_, err := svc.Login(ctx, &memHandle{}, "10.0.0.9", "alice", "correct horse")
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("third attempt error = %v, want ErrTooManyAttempts", err)
	}
	var throttled *ThrottledError
	if !errors.As(err, &throttled) || throttled.RetryAfter != 30*time.Second {
		t.Errorf("error = %#v, want ThrottledError with RetryAfter 30s", err)
	}
}

func TestAuthService_LoginSuccessResetsUsernameThrottle(t *testing.T) {
	limiter := &countingLimiter{limit: 5, counts: map[string]int{}}
	svc := NewAuthService(newUserStore(t), session.NewAdapter(discardLogger), discardLogger,
		WithLoginThrottle(limiter, ratelimit.Policy{Rate: 5, Period: time.Minute}))

	if _, err := svc.Login(context.Background(), &memHandle{}, "10.0.0.1", "alice", "correct horse"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	want := ratelimit.FormatKey(ratelimit.KeyTypeUsername, "alice")
	if len(limiter.resets) != 1 || limiter.resets[0] != want {
		t.Errorf("resets = %v, want [%s]", limiter.resets, want)
	}
	if limiter.counts[ratelimit.FormatKey(ratelimit.KeyTypeIP, "10.0.0.1")] != 1 {
		t.Error("per-IP counter must survive a successful login")
	}
}

func TestAuthService_LoginThrottleFailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("limiter down"), counts: map[string]int{}}
	svc := NewAuthService(newUserStore(t), session.NewAdapter(discardLogger), discardLogger,
		WithLoginThrottle(limiter, ratelimit.Policy{Rate: 1, Period: time.Minute}))

	if _, err := svc.Login(context.Background(), &memHandle{}, "10.0.0.1", "alice", "correct horse"); err != nil {
		t.Errorf("Login() error = %v, want success when limiter errors", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	adapter := session.NewAdapter(discardLogger)
	svc := NewAuthService(newUserStore(t), adapter, discardLogger)
	ctx := context.Background()
	h := &memHandle{}

	if _, err := svc.Login(ctx, h, "10.0.0.1", "alice", "correct horse"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := svc.Logout(ctx, h); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if adapter.Get(ctx, h).LoggedIn {
		t.Error("still logged in after Logout")
	}

	failing := &memHandle{invalidateErr: errors.New("gone")}
	if err := svc.Logout(ctx, failing); !errors.Is(err, session.ErrInvalidationFailed) {
		t.Errorf("Logout() error = %v, want ErrInvalidationFailed", err)
	}
}

func TestAuthService_EnsureUser(t *testing.T) {
	store := &mockUserStore{users: map[string]*account.User{}}
	svc := NewAuthService(store, session.NewAdapter(discardLogger), discardLogger)

	if err := svc.EnsureUser(context.Background(), "bob", "$argon2id$x"); err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if store.users["bob"] == nil || store.users["bob"].PasswordHash != "$argon2id$x" {
		t.Errorf("user not stored: %+v", store.users["bob"])
	}
}
