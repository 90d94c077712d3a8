package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore reads credential records from a JSON object keyed by username.
// The file is read again on every lookup so edits are picked up without a
// restart.
type FileStore struct {
	path string

	// serializes writers; readers rely on the atomic rename in Put.
	mu sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("user state file path is required")
	}

	s := &FileStore{path: path}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Lookup(ctx context.Context, username string) (CredentialRecord, error) {
	if err := ctx.Err(); err != nil {
		return CredentialRecord{}, err
	}
	records, err := s.load()
	if err != nil {
		return CredentialRecord{}, err
	}
	rec, ok := records[username]
	if !ok {
		return CredentialRecord{}, ErrUserNotFound
	}
	return rec, nil
}

func (s *FileStore) Put(_ context.Context, rec CredentialRecord) error {
	rec.Username = strings.TrimSpace(rec.Username)
	if rec.Username == "" || rec.PasswordHash == "" {
		return fmt.Errorf("username and password hash are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records[rec.Username] = rec
	return s.persist(records)
}

func (s *FileStore) load() (map[string]CredentialRecord, error) {
	records := make(map[string]CredentialRecord)

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("read user store file: %w", err)
	}
	if len(b) == 0 {
		return records, nil
	}

	var decoded map[string]CredentialRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, fmt.Errorf("decode user store file: %w", err)
	}
	for key, rec := range decoded {
		if strings.TrimSpace(rec.Username) == "" {
			rec.Username = key
		}
		// entries must agree with their key
		if rec.Username != key {
			continue
		}
		records[key] = rec
	}
	return records, nil
}

func (s *FileStore) persist(records map[string]CredentialRecord) error {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user store file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir user store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".users-*.json")
	if err != nil {
		return fmt.Errorf("create temp user store file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write user store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close user store file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod user store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace user store file: %w", err)
	}
	return nil
}
