package auth

import (
	"context"
	"errors"
	"fmt"
)

// Service ties the credential store to the token service: Login exchanges a
// password for a token, AuthenticateToken turns a token back into an Identity.
type Service struct {
	store  CredentialStore
	tokens *TokenService
}

func NewService(store CredentialStore, tokens *TokenService) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	return &Service{store: store, tokens: tokens}, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	id, err := VerifyCredentials(ctx, s.store, username, password)
	if err != nil {
		return Token{}, err
	}
	tok, err := s.tokens.Issue(id)
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

// AuthenticateToken verifies token and re-resolves its subject against the
// credential store. The record is read fresh on every call.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Identity, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	rec, err := s.store.Lookup(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return Identity{}, fmt.Errorf("lookup token subject: %w", err)
	}
	return rec.Identity, nil
}
