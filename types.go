package gateway

import (
	"context"
)

// Logger takes a message and alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentityProfile is the view of a user the identity provider holds.
type IdentityProfile struct {
	ProviderID string
	AppUserID  int64
	Email      string
	FirstName  string
	LastName   string
	Role       Role
	Enabled    bool
}

// IdentityProvider is the external system of record for credentials.
//
// Implementations must classify their failures: ErrInvalidCredentials for a
// rejected password, and ErrIdentityProviderUnavailable for anything that
// prevented the call from completing. FindByEmail returns (nil, nil) when the
// identity does not exist.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, profile IdentityProfile, password string) (string, error)
	VerifyCredentials(ctx context.Context, email, password string) error
	SetEnabled(ctx context.Context, email string, enabled bool) error
	SetRole(ctx context.Context, email string, role Role) error
	FindByEmail(ctx context.Context, email string) (*IdentityProfile, error)
}

// TokenService issues and validates bearer tokens
type TokenService interface {
	Issue(user *User) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenConfig holds token options
type TokenConfig interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// PasswordAuthenticator hashes and compares passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
