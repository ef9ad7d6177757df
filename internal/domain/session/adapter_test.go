package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// stubHandle is a Handle whose behaviour is fully scripted.
type stubHandle struct {
	data          Session
	loadErr       error
	saveErr       error
	invalidateErr error
	saves         int
	invalidations int
}

func (h *stubHandle) ID() string { return "stub" }

func (h *stubHandle) Load(context.Context) (Session, error) {
	if h.loadErr != nil {
		return Session{}, h.loadErr
	}
	return h.data, nil
}

func (h *stubHandle) Save(_ context.Context, s Session) error {
	h.saves++
	if h.saveErr != nil {
		return h.saveErr
	}
	h.data = s
	return nil
}

func (h *stubHandle) Invalidate(context.Context) error {
	h.invalidations++
	if h.invalidateErr != nil {
		return h.invalidateErr
	}
	h.data = Session{}
	return nil
}

func TestAdapter_GetMapsFailuresToAnonymous(t *testing.T) {
	var buf bytes.Buffer
	a := NewAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	tests := []struct {
		name    string
		h       Handle
		wantLog bool
	}{
		{"nil handle", nil, false},
		{"record gone", &stubHandle{loadErr: ErrSessionNotFound}, false},
		{"store failure", &stubHandle{loadErr: errors.New("timeout")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			got := a.Get(ctx, tt.h)
			if got.Authenticated() || got.Username != "" {
				t.Errorf("Get() = %+v, want anonymous", got)
			}
			if logged := buf.Len() > 0; logged != tt.wantLog {
				t.Errorf("logged = %v, want %v (%s)", logged, tt.wantLog, buf.String())
			}
		})
	}
}

func TestAdapter_SetAuthenticatedWritesAllFieldsOnce(t *testing.T) {
	a := NewAdapter(nil)
	h := &stubHandle{}
	now := time.UnixMilli(1_700_000_123_456)

	if err := a.SetAuthenticated(context.Background(), h, "alice", now); err != nil {
		t.Fatalf("SetAuthenticated() error = %v", err)
	}
	if h.saves != 1 {
		t.Errorf("saves = %d, want 1", h.saves)
	}
	got := a.Get(context.Background(), h)
	if !got.Authenticated() {
		t.Fatalf("Get() = %+v, want authenticated", got)
	}
	if *got.LoginTimeMillis != 1_700_000_123_456 {
		t.Errorf("LoginTimeMillis = %d", *got.LoginTimeMillis)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want alice", got.Username)
	}
}

func TestAdapter_SetAuthenticatedFailure(t *testing.T) {
	a := NewAdapter(nil)
	cause := errors.New("read-only")
	h := &stubHandle{saveErr: cause}

	err := a.SetAuthenticated(context.Background(), h, "alice", time.Now())
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("error = %v, want ErrWriteFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error = %v, want cause in chain", err)
	}

	if err := a.SetAuthenticated(context.Background(), nil, "alice", time.Now()); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("nil handle error = %v, want ErrWriteFailed", err)
	}
}

func TestAdapter_Invalidate(t *testing.T) {
	var buf bytes.Buffer
	a := NewAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	ok := &stubHandle{data: Session{LoggedIn: true}}
	if err := a.Invalidate(ctx, ok); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if a.Get(ctx, ok).LoggedIn {
		t.Error("session still logged in after Invalidate")
	}

	cause := errors.New("store unreachable")
	bad := &stubHandle{invalidateErr: cause}
	err := a.Invalidate(ctx, bad)
	if !errors.Is(err, ErrInvalidationFailed) || !errors.Is(err, cause) {
		t.Errorf("Invalidate() error = %v, want ErrInvalidationFailed wrapping cause", err)
	}
	if !strings.Contains(buf.String(), "session invalidation failed") {
		t.Errorf("failure not logged: %q", buf.String())
	}

	if err := a.Invalidate(ctx, nil); err != nil {
		t.Errorf("Invalidate(nil) error = %v, want nil", err)
	}
}
