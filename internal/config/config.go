package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingSecret is returned by Load when SECRET_KEY is not set.
var ErrMissingSecret = errors.New("SECRET_KEY must be set")

type Config struct {
	HTTP           HTTPConfig
	DatabaseURL    string
	Auth           AuthConfig
	ArrayMaxLength int
	AuditLogFile   string
	LogLevel       string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	SecretKey     string
	Algorithm     string
	TokenTTL      time.Duration
	UserStateFile string
}

func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Auth: AuthConfig{
			SecretKey:     os.Getenv("SECRET_KEY"),
			Algorithm:     strings.ToUpper(getEnv("ALGORITHM", "HS256")),
			TokenTTL:      time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
			UserStateFile: getEnv("AUTH_USER_STATE_FILE", "./data/users.json"),
		},
		ArrayMaxLength: getEnvInt("ARRAY_MAX_LENGTH", 10000),
		AuditLogFile:   getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.Auth.SecretKey) == "" {
		return Config{}, ErrMissingSecret
	}
	if cfg.Auth.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be > 0")
	}
	if cfg.DatabaseURL == "" && cfg.Auth.UserStateFile == "" {
		return Config{}, fmt.Errorf("AUTH_USER_STATE_FILE must not be empty when DATABASE_URL is unset")
	}
	if cfg.ArrayMaxLength <= 0 {
		return Config{}, fmt.Errorf("ARRAY_MAX_LENGTH must be > 0")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}
