package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	gateway "github.com/goliatone/go-trade-gateway"
	"github.com/goliatone/go-trade-gateway/repository"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := repository.Open(context.Background(), gateway.DatabaseConfig{
		Driver: gateway.DatabaseDriverSQLite,
		DSN:    ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(context.Background(), db))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testHasher() gateway.PasswordHasher {
	return gateway.NewPasswordHasher(bcrypt.MinCost)
}

func testTokenConfig() *gateway.Config {
	cfg := gateway.DefaultConfig()
	cfg.Token.SigningKey = testSigningKey
	return cfg
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, gateway.HasTextCode(err, code), "expected %s, got %v", code, err)
}
