package gateway

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeDuplicateIdentity    = "DUPLICATE_IDENTITY"
	TextCodeIDPUnavailable       = "IDP_UNAVAILABLE"
	TextCodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled      = "ACCOUNT_DISABLED"
	TextCodeInvalidQuantity      = "INVALID_QUANTITY"
	TextCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	TextCodeOrderNotFound        = "ORDER_NOT_FOUND"
	TextCodeInvalidOrderStatus   = "INVALID_ORDER_STATUS"
	TextCodeNotAuthorized        = "NOT_AUTHORIZED"
	TextCodeInvalidInput         = "INVALID_INPUT"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenInvalid         = "TOKEN_INVALID"
	TextCodeAccessDenied         = "ACCESS_DENIED"
	TextCodeRouteNotFound        = "ROUTE_NOT_FOUND"
	TextCodeInternal             = "INTERNAL_ERROR"
)

// ErrDuplicateIdentity is returned when registering an email that already exists.
var ErrDuplicateIdentity = goerrors.New("User already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrIdentityProviderUnavailable is returned when the identity provider cannot
// complete a mutation or lookup.
var ErrIdentityProviderUnavailable = goerrors.New("Identity provider is unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeIDPUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrIdentityNotFound is returned when an identity is absent locally or in the IdP.
var ErrIdentityNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is returned when the IdP rejects an email/password pair.
var ErrInvalidCredentials = goerrors.New("Invalid username or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled is returned when valid credentials belong to a disabled account.
var ErrAccountDisabled = goerrors.New("User account is disabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

var ErrInvalidQuantity = goerrors.New("Order quantity must be greater than zero", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidQuantity).
	WithCode(goerrors.CodeBadRequest)

var ErrMissingRequiredField = goerrors.New("Required field is missing", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingRequiredField).
	WithCode(goerrors.CodeBadRequest)

var ErrOrderNotFound = goerrors.New("Order not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeOrderNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidOrderStatus is returned when an order cannot move to the requested status.
var ErrInvalidOrderStatus = goerrors.New("Order cannot be cancelled in its current status", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidOrderStatus).
	WithCode(goerrors.CodeBadRequest)

// ErrNotAuthorized is returned when the acting user does not own the order.
var ErrNotAuthorized = goerrors.New("Not authorized to modify this order", goerrors.CategoryAuthz).
	WithTextCode(TextCodeNotAuthorized).
	WithCode(goerrors.CodeForbidden)

// ErrInvalidInput is returned by the transport when a request body fails validation.
var ErrInvalidInput = goerrors.New("Invalid input", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

var ErrTokenExpired = goerrors.New("Token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenInvalid = goerrors.New("Invalid token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccessDenied is returned when a token's role does not satisfy a route.
var ErrAccessDenied = goerrors.New("Access denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccessDenied).
	WithCode(goerrors.CodeForbidden)

// ErrRouteNotFound is returned for requests no route matches.
var ErrRouteNotFound = goerrors.New("Route not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRouteNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInternal is the generic kind for failures nobody classified.
var ErrInternal = goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(goerrors.CodeInternal)

// HasTextCode reports whether err carries a rich error with the given text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == code
	}
	return false
}

// withDetail clones a sentinel and attaches metadata so the shared value is
// never mutated.
func withDetail(sentinel *goerrors.Error, metadata map[string]any) *goerrors.Error {
	clone := sentinel.Clone()
	if len(metadata) > 0 {
		clone = clone.WithMetadata(metadata)
	}
	return clone
}

// withCause is withDetail plus the underlying error recorded as the source.
func withCause(sentinel *goerrors.Error, cause error, metadata map[string]any) *goerrors.Error {
	clone := withDetail(sentinel, metadata)
	clone.Source = cause
	return clone
}
