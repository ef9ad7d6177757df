// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
)

// DefaultCleanupInterval is how often idle session records are evicted.
const DefaultCleanupInterval = 1 * time.Minute

// SessionStore implements session.SessionStore with an in-memory map.
// Records are copied on the way in and out, so callers never share state.
// Concurrent writes to the same record are last-write-wins.
type SessionStore struct {
	records         map[string]*session.Record
	mu              sync.RWMutex
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
}

// NewSessionStore creates a store with the default cleanup interval.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithConfig(DefaultCleanupInterval)
}

// NewSessionStoreWithConfig creates a store with a custom cleanup interval.
func NewSessionStoreWithConfig(cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		records:         make(map[string]*session.Record),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background goroutine that evicts idle records.
// Call Stop() to stop it gracefully.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for id, rec := range s.records {
		if rec.IsExpired() {
			delete(s.records, id)
			cleaned++
		}
	}

	if cleaned > 0 {
		slog.Debug("evicted idle sessions", "count", cleaned, "remaining", len(s.records))
	}
}

// Stop stops the cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Create stores a new record.
func (s *SessionStore) Create(_ context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec.Copy()
	return nil
}

// Get retrieves a record by ID.
// Expired records are reported as missing but left for the cleanup goroutine.
func (s *SessionStore) Get(_ context.Context, id string) (*session.Record, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok || rec.IsExpired() {
		return nil, session.ErrSessionNotFound
	}
	return rec.Copy(), nil
}

// Update saves changes to an existing record.
func (s *SessionStore) Update(_ context.Context, rec *session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return session.ErrSessionNotFound
	}
	s.records[rec.ID] = rec.Copy()
	return nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// Size returns the number of records currently stored, including expired
// ones not yet evicted.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Compile-time interface verification.
var _ session.SessionStore = (*SessionStore)(nil)
