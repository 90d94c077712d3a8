package auth

import "errors"

var (
	// ErrConfiguration marks a token configuration that cannot be used, such
	// as a missing signing secret. It is fatal at startup.
	ErrConfiguration = errors.New("auth configuration error")

	// ErrAuthenticationFailed is returned by login for an unknown user and for
	// a wrong password alike.
	ErrAuthenticationFailed = errors.New("incorrect username or password")

	// ErrInvalidCredentials is returned for any bearer token that cannot be
	// turned into an Identity: bad signature, malformed claims, expiry, or an
	// unknown subject. The wrapped cause is for logs only.
	ErrInvalidCredentials = errors.New("could not validate credentials")
)
