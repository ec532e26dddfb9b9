package auth0

import (
	"errors"
	"net/http"
	"strings"

	"github.com/auth0/go-auth0/authentication"

	gateway "github.com/goliatone/go-trade-gateway"
)

// statusError is implemented by management API errors.
type statusError interface {
	error
	Status() int
}

// classifyLoginError maps a password grant failure. Rejected grants become
// ErrInvalidCredentials; a blocked user is reported the same way so the
// response does not reveal whether the password matched.
func classifyLoginError(err error) error {
	if err == nil {
		return nil
	}

	var authErr *authentication.Error
	if errors.As(err, &authErr) {
		switch {
		case authErr.Err == "invalid_grant",
			authErr.StatusCode == http.StatusForbidden,
			authErr.StatusCode == http.StatusUnauthorized && strings.Contains(strings.ToLower(authErr.Message), "blocked"):
			return gateway.ErrInvalidCredentials.Clone().WithMetadata(map[string]any{
				"provider_error": authErr.Err,
			})
		}
	}

	return unavailable(err)
}

// classifyManagementError maps a management API failure. A conflict on
// create is surfaced as a duplicate; everything else means the provider
// could not do what was asked.
func classifyManagementError(err error) error {
	if err == nil {
		return nil
	}

	var se statusError
	if errors.As(err, &se) {
		switch se.Status() {
		case http.StatusConflict:
			return gateway.ErrDuplicateIdentity.Clone().WithMetadata(map[string]any{
				"provider_error": se.Error(),
			})
		case http.StatusNotFound:
			return gateway.ErrIdentityNotFound.Clone()
		}
	}

	return unavailable(err)
}

func unavailable(err error) error {
	out := gateway.ErrIdentityProviderUnavailable.Clone()
	out.Source = err
	return out
}
