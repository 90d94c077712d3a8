package auth

import "time"

// Identity is the public profile of a user as held by the credential store.
type Identity struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// CredentialRecord is an Identity plus its stored password hash.
type CredentialRecord struct {
	Identity
	PasswordHash string `json:"hashed_password"`
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

const TokenTypeBearer = "bearer"
