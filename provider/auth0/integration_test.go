//go:build integration
// +build integration

package auth0_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-trade-gateway/provider/auth0"
)

func TestAuth0Integration(t *testing.T) {
	domain := os.Getenv("AUTH0_DOMAIN")
	clientID := os.Getenv("AUTH0_CLIENT_ID")
	clientSecret := os.Getenv("AUTH0_CLIENT_SECRET")
	email := os.Getenv("AUTH0_TEST_EMAIL")
	if domain == "" || clientID == "" || clientSecret == "" || email == "" {
		t.Skip("AUTH0_DOMAIN, AUTH0_CLIENT_ID, AUTH0_CLIENT_SECRET and AUTH0_TEST_EMAIL must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider, err := auth0.NewIdentityProvider(ctx, auth0.IdentityProviderConfig{
		Domain:       domain,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Connection:   os.Getenv("AUTH0_CONNECTION"),
	})
	require.NoError(t, err)

	profile, err := provider.FindByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, profile)
	require.NotEmpty(t, profile.ProviderID)
}
