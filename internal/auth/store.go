package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrUserNotFound = errors.New("user not found")

// CredentialStore resolves a username to its credential record.
// Implementations must return ErrUserNotFound for unknown usernames.
type CredentialStore interface {
	Lookup(ctx context.Context, username string) (CredentialRecord, error)
}

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]CredentialRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]CredentialRecord)}
}

func (s *InMemoryStore) Lookup(_ context.Context, username string) (CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[username]
	if !ok {
		return CredentialRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *InMemoryStore) Put(_ context.Context, rec CredentialRecord) error {
	rec.Username = strings.TrimSpace(rec.Username)
	if rec.Username == "" {
		return errors.New("username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Username] = rec
	return nil
}
