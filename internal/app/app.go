package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"

	"securearray/array-api/internal/array"
	"securearray/array-api/internal/audit"
	"securearray/array-api/internal/auth"
	"securearray/array-api/internal/config"
	"securearray/array-api/internal/httpserver"
	"securearray/array-api/internal/observability"
)

// Version is reported by /v1/info. Overridden at build time with -ldflags.
var Version = "dev"

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	server *httpserver.Server
}

func New(cfg config.Config) (*App, error) {
	logger := observability.NewLogger(cfg.LogLevel)

	var err error
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
	}

	var store auth.CredentialStore
	ready := func(context.Context) error { return nil }
	if db != nil {
		pg, err := auth.NewPostgresStore(db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create postgres credential store: %w", err)
		}
		store = pg
		ready = pg.Ping
		logger.Info("using postgres credential store")
	} else {
		store, err = auth.NewFileStore(cfg.Auth.UserStateFile)
		if err != nil {
			return nil, fmt.Errorf("create file credential store: %w", err)
		}
		logger.Info("using file credential store", "path", cfg.Auth.UserStateFile)
	}

	closeDB := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:    []byte(cfg.Auth.SecretKey),
		Algorithm: cfg.Auth.Algorithm,
		TTL:       cfg.Auth.TokenTTL,
	})
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create token service: %w", err)
	}
	authService, err := auth.NewService(store, tokens)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	generator, err := array.NewGenerator(cfg.ArrayMaxLength)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create array generator: %w", err)
	}

	server := httpserver.New(cfg.HTTP, httpserver.Deps{
		Auth:    authService,
		Arrays:  generator,
		Audit:   audit.NewLogger(cfg.AuditLogFile),
		Metrics: observability.NewMetrics(),
		Logger:  logger,
		Ready:   ready,
		Version: Version,
	})

	return &App{
		cfg:    cfg,
		log:    logger,
		db:     db,
		server: server,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting",
			"addr", a.cfg.HTTP.Addr,
			"algorithm", a.cfg.Auth.Algorithm,
			"token_ttl", a.cfg.Auth.TokenTTL,
		)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}
