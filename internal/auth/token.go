package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultAlgorithm = "HS256"

var supportedAlgorithms = map[string]jwt.SigningMethod{
	jwt.SigningMethodHS256.Alg(): jwt.SigningMethodHS256,
	jwt.SigningMethodHS384.Alg(): jwt.SigningMethodHS384,
	jwt.SigningMethodHS512.Alg(): jwt.SigningMethodHS512,
}

// TokenConfig is built once at startup and handed to NewTokenService.
type TokenConfig struct {
	Secret    []byte
	Algorithm string
	TTL       time.Duration
}

// TokenService issues and verifies signed, time-bounded bearer tokens.
// It holds no mutable state after construction.
type TokenService struct {
	secret  []byte
	method  jwt.SigningMethod
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret is not configured", ErrConfiguration)
	}
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := supportedAlgorithms[alg]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported signing algorithm %q", ErrConfiguration, cfg.Algorithm)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%w: token ttl must be > 0", ErrConfiguration)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenService{
		secret:  secret,
		method:  method,
		ttl:     cfg.TTL,
		nowFunc: time.Now,
	}, nil
}

// Issue signs a token whose subject is the identity's username.
func (s *TokenService) Issue(id Identity) (Token, error) {
	subject := strings.TrimSpace(id.Username)
	if subject == "" {
		return Token{}, errors.New("username is required")
	}

	now := s.nowFunc().UTC()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks the signature, algorithm and expiry of token and returns its
// subject. Every failure wraps ErrInvalidCredentials.
func (s *TokenService) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.nowFunc),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("%w: token not valid", ErrInvalidCredentials)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidCredentials)
	}
	return subject, nil
}
