package jwtware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	// ErrJWTMissingOrMalformed is returned when no bearer token could be extracted.
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

	// ErrRoleRequired is returned when a valid token lacks the route's role.
	ErrRoleRequired = errors.New("access denied")
)

// TokenValidator validates a raw token and returns its claims.
// It mirrors the gateway token service without importing it.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate implements TokenValidator.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	return f(tokenString)
}

// AuthClaims is the subset of claims the middleware needs.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Role() string
	HasRole(role string) bool
}

type Config struct {
	ErrorHandler router.ErrorHandler
	ContextKey   string
	Header       string
	AuthScheme   string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// RequiredRole names the role a route is guarded by
	RequiredRole string
	// RoleChecker decides whether the claims satisfy RequiredRole. Defaults to
	// an exact match through AuthClaims.HasRole.
	RoleChecker func(AuthClaims, string) bool
}

// New returns a middleware that authenticates the bearer token, checks the
// role and stores the claims under ContextKey before calling the next handler.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extract := jwtFromHeader(cfg.Header, cfg.AuthScheme)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw, err := extract(ctx)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := performAuthorizationChecks(claims, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			return next(ctx)
		}
	}
}

func performAuthorizationChecks(claims AuthClaims, cfg Config) error {
	if cfg.RequiredRole == "" {
		return nil
	}

	if !cfg.RoleChecker(claims, cfg.RequiredRole) {
		return fmt.Errorf("%w: role '%s' does not satisfy '%s'", ErrRoleRequired, claims.Role(), cfg.RequiredRole)
	}

	return nil
}

// ClaimsFromContext returns the claims stored by the middleware.
func ClaimsFromContext(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user"
	}
	claims, ok := ctx.Locals(key).(AuthClaims)
	return claims, ok && claims != nil
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			switch {
			case errors.Is(err, ErrJWTMissingOrMalformed):
				return ctx.Status(router.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			case errors.Is(err, ErrRoleRequired):
				return ctx.Status(router.StatusForbidden).SendString(ErrRoleRequired.Error())
			}
			return ctx.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("GATEWAY: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.RoleChecker == nil {
		cfg.RoleChecker = func(claims AuthClaims, role string) bool {
			return claims.HasRole(role)
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.Header == "" {
		cfg.Header = router.HeaderAuthorization
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// JWTExtractor pulls a raw token out of a request.
type JWTExtractor func(ctx router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(ctx router.Context) (string, error) {
		a := ctx.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			return "", ErrJWTMissingOrMalformed
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}
