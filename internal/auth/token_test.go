package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestTokenService(t *testing.T, secret string, ttl time.Duration) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{Secret: []byte(secret), Algorithm: "HS256", TTL: ttl})
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}
	return svc
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(TokenConfig{Algorithm: "HS256", TTL: time.Minute})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewTokenServiceRejectsUnsupportedAlgorithm(t *testing.T) {
	for _, alg := range []string{"RS256", "none", "ES256"} {
		_, err := NewTokenService(TokenConfig{Secret: []byte("k"), Algorithm: alg, TTL: time.Minute})
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("algorithm %s: expected ErrConfiguration, got %v", alg, err)
		}
	}
}

func TestNewTokenServiceDefaultsAlgorithm(t *testing.T) {
	svc, err := NewTokenService(TokenConfig{Secret: []byte("k"), TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}
	if svc.method.Alg() != "HS256" {
		t.Fatalf("expected HS256 default, got %s", svc.method.Alg())
	}
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestTokenService(t, "secret", 30*time.Minute)

	tok, err := svc.Issue(Identity{Username: "monte", DisplayName: "Monte", Email: "monte@example.com"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if tok.AccessToken == "" {
		t.Fatalf("expected non-empty token")
	}
	if tok.TokenType != "bearer" {
		t.Fatalf("expected token type bearer, got %q", tok.TokenType)
	}
	if time.Until(tok.ExpiresAt) <= 29*time.Minute {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt)
	}

	subject, err := svc.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if subject != "monte" {
		t.Fatalf("expected subject monte, got %q", subject)
	}
}

func TestIssueRequiresUsername(t *testing.T) {
	svc := newTestTokenService(t, "secret", time.Minute)
	if _, err := svc.Issue(Identity{}); err == nil {
		t.Fatalf("expected error for empty username")
	}
}

func TestVerifyExpired(t *testing.T) {
	svc := newTestTokenService(t, "secret", time.Minute)
	fakeNow := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return fakeNow }

	tok, err := svc.Issue(Identity{Username: "monte"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	svc.nowFunc = func() time.Time { return fakeNow.Add(59 * time.Second) }
	if _, err := svc.Verify(tok.AccessToken); err != nil {
		t.Fatalf("expected token valid before expiry, got %v", err)
	}

	svc.nowFunc = func() time.Time { return fakeNow.Add(time.Minute) }
	_, err = svc.Verify(tok.AccessToken)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected wrapped jwt.ErrTokenExpired, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := newTestTokenService(t, "old-secret", time.Minute)
	verifier := newTestTokenService(t, "new-secret", time.Minute)

	tok, err := issuer.Issue(Identity{Username: "monte"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := verifier.Verify(tok.AccessToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyWrongAlgorithm(t *testing.T) {
	issuer, err := NewTokenService(TokenConfig{Secret: []byte("secret"), Algorithm: "HS512", TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewTokenService() error: %v", err)
	}
	verifier := newTestTokenService(t, "secret", time.Minute)

	tok, err := issuer.Issue(Identity{Username: "monte"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := verifier.Verify(tok.AccessToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	svc := newTestTokenService(t, "secret", time.Minute)
	for _, raw := range []string{"", "   ", "not.a.jwt", "abc"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("token %q: expected ErrInvalidCredentials, got %v", raw, err)
		}
	}
}

func TestVerifyMissingSubject(t *testing.T) {
	svc := newTestTokenService(t, "secret", time.Minute)
	now := time.Now()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyMissingExpiry(t *testing.T) {
	svc := newTestTokenService(t, "secret", time.Minute)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "monte",
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyIsRepeatable(t *testing.T) {
	svc := newTestTokenService(t, "secret", time.Minute)
	tok, err := svc.Issue(Identity{Username: "monte"})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		subject, err := svc.Verify(tok.AccessToken)
		if err != nil {
			t.Fatalf("Verify() #%d error: %v", i, err)
		}
		if subject != "monte" {
			t.Fatalf("Verify() #%d subject %q", i, subject)
		}
	}
}
