package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/account"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/failure"
)

// UserStore implements account.UserStore.
type UserStore struct {
	db  *DB
	now func() time.Time
}

// NewUserStore creates a UserStore on db.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db, now: time.Now}
}

// GetByUsername returns account.ErrUserNotFound for unknown usernames.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*account.User, error) {
	var (
		u         account.User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrUserNotFound
	}
	if err != nil {
		return nil, failure.DataAccess("get user", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}

// Upsert creates the user or replaces its password hash.
func (s *UserStore) Upsert(ctx context.Context, username, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash`,
		username, passwordHash, s.now().UnixMilli(),
	)
	return failure.DataAccess("upsert user", err)
}

var _ account.UserStore = (*UserStore)(nil)
