// Package auth0 implements the gateway IdentityProvider on top of the Auth0
// management API and the password grant of the authentication API.
package auth0
