package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS auth_users").WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewPostgresStore(db)
	if err != nil {
		t.Fatalf("NewPostgresStore() error: %v", err)
	}
	return store, mock
}

func TestNewPostgresStore(t *testing.T) {
	_, mock := newMockPostgresStore(t)
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestNewPostgresStoreRequiresDB(t *testing.T) {
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected error for nil database")
	}
}

func TestPostgresStoreLookup(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT username, display_name, email, password_hash FROM auth_users WHERE username = \\$1").
		WithArgs("monte").
		WillReturnRows(sqlmock.NewRows([]string{"username", "display_name", "email", "password_hash"}).
			AddRow("monte", "Monte", "monte@example.com", "hash"))

	rec, err := store.Lookup(context.Background(), "monte")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if rec.Username != "monte" || rec.Email != "monte@example.com" || rec.PasswordHash != "hash" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresStoreLookupNotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT username, display_name, email, password_hash FROM auth_users WHERE username = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Lookup(context.Background(), "missing")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := store.Lookup(context.Background(), "  "); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for blank username, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresStoreLookupQueryError(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT username").WithArgs("monte").WillReturnError(errors.New("connection reset"))

	_, err := store.Lookup(context.Background(), "monte")
	if err == nil || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestPostgresStorePut(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO auth_users").
		WithArgs("monte", "Monte", "monte@example.com", "hash").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Put(context.Background(), CredentialRecord{
		Identity:     Identity{Username: "monte", DisplayName: "Monte", Email: "monte@example.com"},
		PasswordHash: "hash",
	}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := store.Put(context.Background(), CredentialRecord{Identity: Identity{Username: "monte"}}); err == nil {
		t.Fatalf("expected error for missing password hash")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
