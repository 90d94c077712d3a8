package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored bcrypt hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// VerifyCredentials looks up username and checks password against the stored
// hash. Unknown users and wrong passwords both yield ErrAuthenticationFailed.
func VerifyCredentials(ctx context.Context, store CredentialStore, username, password string) (Identity, error) {
	rec, err := store.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// keep timing in line with the wrong-password path
			_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(password))
			return Identity{}, ErrAuthenticationFailed
		}
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := VerifyPassword(rec.PasswordHash, password); err != nil {
		return Identity{}, ErrAuthenticationFailed
	}
	return rec.Identity, nil
}

func placeholderHash() []byte {
	dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
		if err == nil {
			dummyHash = h
		}
	})
	return dummyHash
}
