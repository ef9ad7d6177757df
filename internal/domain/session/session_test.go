package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockSessionStore is a simple in-memory mock for testing.
type mockSessionStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	getErr  error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		records: make(map[string]*Record),
	}
}

func (m *mockSessionStore) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec.Copy()
	return nil
}

func (m *mockSessionStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return rec.Copy(), nil
}

func (m *mockSessionStore) Update(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; !ok {
		return ErrSessionNotFound
	}
	m.records[rec.ID] = rec.Copy()
	return nil
}

func (m *mockSessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func TestGenerateSessionID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		if len(id) != 64 {
			t.Errorf("GenerateSessionID() len = %d, want 64", len(id))
		}
		for _, c := range id {
			if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
				t.Errorf("GenerateSessionID() contains non-hex character: %c", c)
			}
		}
		if ids[id] {
			t.Errorf("GenerateSessionID() generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

func TestSessionService_OpenCreatesAnonymousSession(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{IdleTimeout: time.Hour})
	ctx := context.Background()

	h, created, err := svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !created {
		t.Error("Open(\"\") created = false, want true")
	}

	got, err := h.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.LoggedIn || got.LoginTimeMillis != nil || got.Username != "" {
		t.Errorf("new session = %+v, want zero value", got)
	}
	if _, ok := store.records[h.ID()]; !ok {
		t.Error("record not persisted")
	}
}

func TestSessionService_OpenExisting(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{})
	ctx := context.Background()

	first, _, err := svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	second, created, err := svc.Open(ctx, first.ID())
	if err != nil {
		t.Fatalf("Open(existing) error = %v", err)
	}
	if created {
		t.Error("Open(existing) created = true, want false")
	}
	if second.ID() != first.ID() {
		t.Errorf("Open(existing) ID = %s, want %s", second.ID(), first.ID())
	}
}

func TestSessionService_OpenUnknownIDIssuesNew(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{})

	h, created, err := svc.Open(context.Background(), "forged-or-evicted")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if h.ID() == "forged-or-evicted" {
		t.Error("client-supplied unknown ID was adopted")
	}
}

func TestSessionService_OpenStoreFailure(t *testing.T) {
	store := newMockSessionStore()
	store.getErr = errors.New("disk on fire")
	svc := NewSessionService(store, Config{})

	_, _, err := svc.Open(context.Background(), "abc")
	if err == nil {
		t.Fatal("Open() error = nil, want store failure")
	}
	if !errors.Is(err, store.getErr) {
		t.Errorf("Open() error = %v, want wrapped store error", err)
	}
}

func TestSessionService_OpenDefaultsIdleTimeout(t *testing.T) {
	svc := NewSessionService(newMockSessionStore(), Config{})
	if svc.timeout != DefaultIdleTimeout {
		t.Errorf("timeout = %v, want %v", svc.timeout, DefaultIdleTimeout)
	}
}

func TestHandle_SaveAndLoad(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{})
	ctx := context.Background()

	h, _, err := svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ms := int64(1_700_000_000_000)
	if err := h.Save(ctx, Session{LoggedIn: true, LoginTimeMillis: &ms, Username: "alice"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	ms = 0

	got, err := h.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.LoggedIn || got.Username != "alice" {
		t.Errorf("Load() = %+v", got)
	}
	if got.LoginTimeMillis == nil || *got.LoginTimeMillis != 1_700_000_000_000 {
		t.Errorf("LoginTimeMillis = %v, want 1700000000000", got.LoginTimeMillis)
	}
}

func TestHandle_SaveRecreatesEvictedRecord(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{})
	ctx := context.Background()

	h, _, err := svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = store.Delete(ctx, h.ID())

	if err := h.Save(ctx, Session{Username: "bob"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := h.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Username != "bob" {
		t.Errorf("Username = %q, want bob", got.Username)
	}
}

func TestHandle_Invalidate(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{})
	ctx := context.Background()

	h, _, err := svc.Open(ctx, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := h.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := h.Load(ctx); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Load() after Invalidate error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionService_GetExpiredRecordIsDeleted(t *testing.T) {
	store := newMockSessionStore()
	svc := NewSessionService(store, Config{})
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	_ = store.Create(ctx, &Record{ID: "old", CreatedAt: past, ExpiresAt: past, LastAccess: past})

	if _, err := svc.Get(ctx, "old"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
	if _, ok := store.records["old"]; ok {
		t.Error("expired record was not deleted")
	}
}

func TestSession_Authenticated(t *testing.T) {
	ms := int64(1)
	tests := []struct {
		name string
		s    Session
		want bool
	}{
		{"zero value", Session{}, false},
		{"logged in without time", Session{LoggedIn: true}, false},
		{"time without logged in", Session{LoginTimeMillis: &ms}, false},
		{"both set", Session{LoggedIn: true, LoginTimeMillis: &ms}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Authenticated(); got != tt.want {
				t.Errorf("Authenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}
