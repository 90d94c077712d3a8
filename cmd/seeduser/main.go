package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"securearray/array-api/internal/auth"
)

type userWriter interface {
	Put(ctx context.Context, rec auth.CredentialRecord) error
}

func main() {
	username := strings.TrimSpace(os.Getenv("SEED_USERNAME"))
	password := os.Getenv("SEED_PASSWORD")
	if username == "" || password == "" {
		fmt.Fprintln(os.Stderr, "SEED_USERNAME and SEED_PASSWORD are required")
		os.Exit(2)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}
	rec := auth.CredentialRecord{
		Identity: auth.Identity{
			Username:    username,
			DisplayName: os.Getenv("SEED_DISPLAY_NAME"),
			Email:       os.Getenv("SEED_EMAIL"),
		},
		PasswordHash: hash,
	}

	var store userWriter
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := openPostgres(dsn)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer db.Close()
		store, err = auth.NewPostgresStore(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create postgres credential store: %v\n", err)
			os.Exit(1)
		}
	} else {
		path := os.Getenv("AUTH_USER_STATE_FILE")
		if path == "" {
			path = "./data/users.json"
		}
		store, err = auth.NewFileStore(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create file credential store: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Put(ctx, rec); err != nil {
		fmt.Fprintf(os.Stderr, "store user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("user %s provisioned\n", username)
}

// openPostgres retries Ping until the server answers or
// WAIT_FOR_POSTGRES_TIMEOUT_SEC elapses.
func openPostgres(dsn string) (*sql.DB, error) {
	timeout := 60 * time.Second
	if raw := os.Getenv("WAIT_FOR_POSTGRES_TIMEOUT_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid WAIT_FOR_POSTGRES_TIMEOUT_SEC: %q", raw)
		}
		timeout = time.Duration(secs) * time.Second
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := db.PingContext(ctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			_ = db.Close()
			return nil, fmt.Errorf("postgres not ready within %s: %w", timeout, err)
		}
		time.Sleep(2 * time.Second)
	}
}
