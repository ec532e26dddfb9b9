package gateway_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateway "github.com/goliatone/go-trade-gateway"
)

func newMockConfig() *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return(testSigningKey)
	mockConfig.On("GetTokenExpiration").Return(24)
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetAudience").Return([]string{"test:audience"})
	return mockConfig
}

func tokenUser() *gateway.User {
	return &gateway.User{
		ID:      42,
		Email:   "alice@example.com",
		Role:    gateway.RoleTrader,
		Enabled: true,
	}
}

func TestIssueAndValidate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := gateway.NewTokenService(newMockConfig(), nil).WithClock(func() time.Time { return now })

	token, err := ts.Issue(tokenUser())
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject())
	assert.Equal(t, "42", claims.UserID())
	assert.Equal(t, "alice@example.com", claims.Email())
	assert.Equal(t, "TRADER", claims.Role())
	assert.True(t, claims.HasRole("TRADER"))
	assert.False(t, claims.HasRole("ADMIN"))
	// claims come back in local time; compare instants, not locations
	assert.WithinDuration(t, now.Add(24*time.Hour), claims.Expires(), 0)
	assert.WithinDuration(t, now, claims.IssuedAt(), 0)

	jwtClaims, ok := claims.(*gateway.JWTClaims)
	require.True(t, ok)
	assert.NotEmpty(t, jwtClaims.ID, "token id should be set")
	assert.Equal(t, "test-issuer", jwtClaims.Issuer)
}

func TestIssueNilUser(t *testing.T) {
	ts := gateway.NewTokenService(newMockConfig(), nil)
	_, err := ts.Issue(nil)
	assert.Error(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	ts := gateway.NewTokenService(newMockConfig(), nil).WithClock(func() time.Time { return clock })

	token, err := ts.Issue(tokenUser())
	require.NoError(t, err)

	clock = issuedAt.Add(25 * time.Hour)
	_, err = ts.Validate(token)
	assertCode(t, err, gateway.TextCodeTokenExpired)
}

func TestValidateRejectsTampering(t *testing.T) {
	ts := gateway.NewTokenService(newMockConfig(), nil)

	token, err := ts.Issue(tokenUser())
	require.NoError(t, err)

	other := new(MockConfig)
	other.On("GetSigningKey").Return("ffffffffffffffffffffffffffffffff")
	other.On("GetTokenExpiration").Return(24)
	other.On("GetIssuer").Return("test-issuer")
	other.On("GetAudience").Return([]string{"test:audience"})

	_, err = gateway.NewTokenService(other, nil).Validate(token)
	assertCode(t, err, gateway.TextCodeTokenInvalid)

	_, err = ts.Validate("not-a-token")
	assertCode(t, err, gateway.TextCodeTokenInvalid)
}

func TestValidateRejectsWrongIssuerAndAudience(t *testing.T) {
	ts := gateway.NewTokenService(newMockConfig(), nil)

	foreign := &gateway.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "1",
			Audience:  jwt.ClaimStrings{"test:audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := ts.SignClaims(foreign)
	require.NoError(t, err)
	_, err = ts.Validate(token)
	assertCode(t, err, gateway.TextCodeTokenInvalid)

	foreign.Issuer = "test-issuer"
	foreign.Audience = jwt.ClaimStrings{"other:audience"}
	token, err = ts.SignClaims(foreign)
	require.NoError(t, err)
	_, err = ts.Validate(token)
	assertCode(t, err, gateway.TextCodeTokenInvalid)
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	ts := gateway.NewTokenService(newMockConfig(), nil)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &gateway.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test:audience"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserRole: "ADMIN",
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assertCode(t, err, gateway.TextCodeTokenInvalid)
}
