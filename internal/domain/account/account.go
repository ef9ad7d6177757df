// Package account holds the user accounts that may log in.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
)

var (
	// ErrUserNotFound is returned by a UserStore for unknown usernames.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when a username/password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnsupportedHash is returned for stored hashes that are not Argon2id PHC strings.
	ErrUnsupportedHash = errors.New("unsupported password hash format")
)

// User is an account that may log in.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore provides user persistence.
type UserStore interface {
	// GetByUsername returns ErrUserNotFound when no user matches.
	GetByUsername(ctx context.Context, username string) (*User, error)
	// Upsert creates the user or replaces the stored password hash.
	Upsert(ctx context.Context, username, passwordHash string) error
}

// argon2idParams defines OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword returns an Argon2id hash of password in PHC format:
// $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2idParams)
}

// VerifyPassword reports whether password matches storedHash.
func VerifyPassword(password, storedHash string) (match bool, err error) {
	if !strings.HasPrefix(storedHash, "$argon2id$") {
		return false, ErrUnsupportedHash
	}
	// The argon2 package panics on hashes with zero rounds or parallelism.
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(password, storedHash)
}

// dummyHash is verified against when the user does not exist, so unknown
// usernames cost the same as wrong passwords.
var dummyHash, _ = HashPassword("sessiongate-dummy-password")

// Authenticate resolves username and checks password. Unknown users and wrong
// passwords both yield ErrInvalidCredentials; store failures are returned as is.
func Authenticate(ctx context.Context, store UserStore, username, password string) (*User, error) {
	user, err := store.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		_, _ = VerifyPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password for %q: %w", username, err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
