package auth0

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goauth0 "github.com/auth0/go-auth0"
	"github.com/auth0/go-auth0/authentication"
	"github.com/auth0/go-auth0/authentication/oauth"
	"github.com/auth0/go-auth0/management"

	gateway "github.com/goliatone/go-trade-gateway"
)

const (
	metadataRole      = "role"
	metadataAppUserID = "app_user_id"

	defaultConnection = "Username-Password-Authentication"
	defaultTimeout    = 5 * time.Second
)

// IdentityProviderConfig configures the Auth0 identity provider.
type IdentityProviderConfig struct {
	// Domain is the Auth0 tenant domain, used for both APIs.
	Domain string

	// ClientID and ClientSecret belong to an application allowed to call the
	// management API and the password grant.
	ClientID     string
	ClientSecret string

	// Connection is the database connection users are created in.
	Connection string

	// RequestTimeout bounds every call made to Auth0.
	RequestTimeout time.Duration
}

// userManager is the subset of *management.UserManager in use.
type userManager interface {
	ListByEmail(ctx context.Context, email string, opts ...management.RequestOption) ([]*management.User, error)
	Create(ctx context.Context, u *management.User, opts ...management.RequestOption) error
	Update(ctx context.Context, id string, u *management.User, opts ...management.RequestOption) error
}

// passwordLogin is the subset of *authentication.OAuth in use.
type passwordLogin interface {
	LoginWithPassword(ctx context.Context, body oauth.LoginWithPasswordRequest, validationOptions oauth.IDTokenValidationOptions, opts ...authentication.RequestOption) (*oauth.TokenSet, error)
}

// IdentityProvider implements gateway.IdentityProvider backed by Auth0.
type IdentityProvider struct {
	users      userManager
	login      passwordLogin
	connection string
	timeout    time.Duration
	logger     gateway.Logger
}

var _ gateway.IdentityProvider = (*IdentityProvider)(nil)

// NewIdentityProvider creates an Auth0-backed identity provider.
func NewIdentityProvider(ctx context.Context, cfg IdentityProviderConfig) (*IdentityProvider, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("auth0: domain is required")
	}

	mgmt, err := management.New(
		domain,
		management.WithClientCredentials(ctx, cfg.ClientID, cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create management client: %w", err)
	}

	authAPI, err := authentication.New(
		ctx,
		domain,
		authentication.WithClientID(cfg.ClientID),
		authentication.WithClientSecret(cfg.ClientSecret),
	)
	if err != nil {
		return nil, fmt.Errorf("auth0: failed to create authentication client: %w", err)
	}

	return newIdentityProvider(mgmt.User, authAPI.OAuth, cfg), nil
}

func newIdentityProvider(users userManager, login passwordLogin, cfg IdentityProviderConfig) *IdentityProvider {
	connection := strings.TrimSpace(cfg.Connection)
	if connection == "" {
		connection = defaultConnection
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &IdentityProvider{
		users:      users,
		login:      login,
		connection: connection,
		timeout:    timeout,
		logger:     gateway.NewNopLogger(),
	}
}

// WithLogger sets the logger used for provider diagnostics.
func (p *IdentityProvider) WithLogger(logger gateway.Logger) *IdentityProvider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// CreateIdentity creates the user in the configured connection. The local
// surrogate id and role are stored in app_metadata.
func (p *IdentityProvider) CreateIdentity(ctx context.Context, profile gateway.IdentityProfile, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u := &management.User{
		Connection: goauth0.String(p.connection),
		Email:      goauth0.String(profile.Email),
		Password:   goauth0.String(password),
		GivenName:  goauth0.String(profile.FirstName),
		FamilyName: goauth0.String(profile.LastName),
		Name:       goauth0.String(strings.TrimSpace(profile.FirstName + " " + profile.LastName)),
		Blocked:    goauth0.Bool(!profile.Enabled),
		AppMetadata: &map[string]interface{}{
			metadataRole:      string(profile.Role),
			metadataAppUserID: strconv.FormatInt(profile.AppUserID, 10),
		},
	}

	if err := p.users.Create(ctx, u); err != nil {
		p.logger.Warn("auth0 create user failed", "email", profile.Email, "error", err)
		return "", classifyManagementError(err)
	}

	return u.GetID(), nil
}

// VerifyCredentials runs the resource owner password grant against the
// configured connection.
func (p *IdentityProvider) VerifyCredentials(ctx context.Context, email, password string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.login.LoginWithPassword(ctx, oauth.LoginWithPasswordRequest{
		Username: email,
		Password: password,
		Realm:    p.connection,
		Scope:    "openid",
	}, oauth.IDTokenValidationOptions{})
	if err != nil {
		return classifyLoginError(err)
	}
	return nil
}

// SetEnabled mirrors the flag onto the Auth0 blocked attribute.
func (p *IdentityProvider) SetEnabled(ctx context.Context, email string, enabled bool) error {
	return p.update(ctx, email, &management.User{
		Blocked: goauth0.Bool(!enabled),
	})
}

// SetRole stores the role in app_metadata.
func (p *IdentityProvider) SetRole(ctx context.Context, email string, role gateway.Role) error {
	return p.update(ctx, email, &management.User{
		AppMetadata: &map[string]interface{}{
			metadataRole: string(role),
		},
	})
}

// FindByEmail returns the first identity in the configured connection with
// the given email, or nil when there is none.
func (p *IdentityProvider) FindByEmail(ctx context.Context, email string) (*gateway.IdentityProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u, err := p.lookup(ctx, email)
	if err != nil || u == nil {
		return nil, err
	}
	return mapUser(u), nil
}

func (p *IdentityProvider) update(ctx context.Context, email string, patch *management.User) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	u, err := p.lookup(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return gateway.ErrIdentityNotFound.Clone().WithMetadata(map[string]any{"email": email})
	}

	if err := p.users.Update(ctx, u.GetID(), patch); err != nil {
		return classifyManagementError(err)
	}
	return nil
}

func (p *IdentityProvider) lookup(ctx context.Context, email string) (*management.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	found, err := p.users.ListByEmail(ctx, email)
	if err != nil {
		return nil, classifyManagementError(err)
	}

	// Auth0 lowercases emails; the gateway key is case sensitive.
	for _, u := range found {
		if u == nil || !strings.EqualFold(u.GetEmail(), email) {
			continue
		}
		if !fromConnection(u, p.connection) {
			continue
		}
		return u, nil
	}
	return nil, nil
}

func fromConnection(u *management.User, connection string) bool {
	if len(u.Identities) == 0 {
		return true
	}
	for _, id := range u.Identities {
		if id != nil && id.GetConnection() == connection {
			return true
		}
	}
	return false
}

func mapUser(u *management.User) *gateway.IdentityProfile {
	if u == nil {
		return nil
	}

	metadata := map[string]any{}
	if u.AppMetadata != nil {
		for k, v := range *u.AppMetadata {
			metadata[k] = v
		}
	}

	firstName, lastName := u.GetGivenName(), u.GetFamilyName()
	if firstName == "" && lastName == "" {
		firstName, lastName = splitName(u.GetName())
	}

	role, ok := gateway.ParseRole(roleFromMetadata(metadata))
	if !ok {
		role = gateway.RoleTrader
	}

	return &gateway.IdentityProfile{
		ProviderID: u.GetID(),
		AppUserID:  appUserIDFromMetadata(metadata),
		Email:      u.GetEmail(),
		FirstName:  firstName,
		LastName:   lastName,
		Role:       role,
		Enabled:    !u.GetBlocked(),
	}
}

func roleFromMetadata(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}

	if raw, ok := metadata[metadataRole]; ok {
		if role, ok := raw.(string); ok {
			return role
		}
	}

	return ""
}

func appUserIDFromMetadata(metadata map[string]any) int64 {
	switch v := metadata[metadataAppUserID].(type) {
	case string:
		id, _ := strconv.ParseInt(v, 10, 64)
		return id
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
