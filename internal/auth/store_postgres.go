package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	const q = `
CREATE TABLE IF NOT EXISTS auth_users (
	username TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := s.db.Exec(q); err != nil {
		return fmt.Errorf("ensure auth_users schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Lookup(ctx context.Context, username string) (CredentialRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return CredentialRecord{}, ErrUserNotFound
	}

	var rec CredentialRecord
	const q = `SELECT username, display_name, email, password_hash FROM auth_users WHERE username = $1`
	err := s.db.QueryRowContext(ctx, q, username).Scan(&rec.Username, &rec.DisplayName, &rec.Email, &rec.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CredentialRecord{}, ErrUserNotFound
		}
		return CredentialRecord{}, fmt.Errorf("query auth user: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec CredentialRecord) error {
	rec.Username = strings.TrimSpace(rec.Username)
	if rec.Username == "" || rec.PasswordHash == "" {
		return fmt.Errorf("username and password hash are required")
	}

	const q = `
INSERT INTO auth_users (username, display_name, email, password_hash, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (username) DO UPDATE
SET display_name = EXCLUDED.display_name,
	email = EXCLUDED.email,
	password_hash = EXCLUDED.password_hash,
	updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, rec.Username, rec.DisplayName, rec.Email, rec.PasswordHash); err != nil {
		return fmt.Errorf("upsert auth user: %w", err)
	}
	return nil
}

// Ping reports whether the backing database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
