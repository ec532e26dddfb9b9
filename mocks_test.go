package gateway_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	gateway "github.com/goliatone/go-trade-gateway"
)

// MockIdentityProvider implements gateway.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateIdentity(ctx context.Context, profile gateway.IdentityProfile, password string) (string, error) {
	args := m.Called(ctx, profile, password)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) VerifyCredentials(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockIdentityProvider) SetEnabled(ctx context.Context, email string, enabled bool) error {
	args := m.Called(ctx, email, enabled)
	return args.Error(0)
}

func (m *MockIdentityProvider) SetRole(ctx context.Context, email string, role gateway.Role) error {
	args := m.Called(ctx, email, role)
	return args.Error(0)
}

func (m *MockIdentityProvider) FindByEmail(ctx context.Context, email string) (*gateway.IdentityProfile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.IdentityProfile), args.Error(1)
}

// MockUserFinder implements gateway.UserFinder
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) FindByEmail(ctx context.Context, email string) (*gateway.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

// MockTokenService implements gateway.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(user *gateway.User) (string, error) {
	args := m.Called(user)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (gateway.AuthClaims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gateway.AuthClaims), args.Error(1)
}

// MockConfig implements gateway.TokenConfig
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetTokenExpiration() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockConfig) GetIssuer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockConfig) GetAudience() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockUsers implements gateway.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Register(ctx context.Context, user *gateway.User) (*gateway.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *gateway.User) (*gateway.User, error) {
	args := m.Called(ctx, tx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*gateway.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*gateway.User, error) {
	args := m.Called(ctx, tx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id int64) (*gateway.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) SetEnabled(ctx context.Context, email string, enabled bool) (*gateway.User, error) {
	args := m.Called(ctx, email, enabled)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) SetRole(ctx context.Context, email string, role gateway.Role) (*gateway.User, error) {
	args := m.Called(ctx, email, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.User), args.Error(1)
}

func (m *MockUsers) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockOrders implements gateway.Orders
type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) Create(ctx context.Context, order *gateway.Order) (*gateway.Order, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockOrders) GetByID(ctx context.Context, id int64) (*gateway.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockOrders) GetByOrderID(ctx context.Context, orderID string) (*gateway.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockOrders) ListByTrader(ctx context.Context, traderID int64, filter gateway.OrderFilter) ([]*gateway.Order, error) {
	args := m.Called(ctx, traderID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*gateway.Order), args.Error(1)
}

func (m *MockOrders) CompareAndSetStatus(ctx context.Context, id, traderID int64, from []gateway.OrderStatus, to gateway.OrderStatus) (*gateway.Order, bool, error) {
	args := m.Called(ctx, id, traderID, from, to)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*gateway.Order), args.Bool(1), args.Error(2)
}

// recordingSink collects activity events.
type recordingSink struct {
	events []gateway.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event gateway.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []gateway.ActivityEventType {
	out := make([]gateway.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}
