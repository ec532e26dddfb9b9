package gateway

import (
	"context"
	"strings"
)

// UserFinder looks up local users by email, returning nil when absent.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// Authenticator gates token issuance on the IdP and the local mirror.
type Authenticator struct {
	idp      IdentityProvider
	users    UserFinder
	tokens   TokenService
	logger   Logger
	activity activityRecorder
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(idp IdentityProvider, users UserFinder, tokens TokenService) *Authenticator {
	logger := NewNopLogger()
	return &Authenticator{
		idp:      idp,
		users:    users,
		tokens:   tokens,
		logger:   logger,
		activity: newActivityRecorder(logger),
	}
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	a.logger = normalizeLogger(logger)
	a.activity.logger = a.logger
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity.sink = normalizeActivitySink(sink)
	return a
}

// Authenticate checks, in order: the identity exists in the IdP, the IdP
// accepts the credentials, a local record exists, and the local record is
// enabled. A disabled account is only reported after the password was
// verified.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)

	profile, err := a.idp.FindByEmail(ctx, email)
	if err != nil {
		return "", a.fail(ctx, email, "idp_lookup", classifyProviderError(err))
	}
	if profile == nil {
		return "", a.fail(ctx, email, "idp_lookup", withDetail(ErrIdentityNotFound, map[string]any{"email": email}))
	}

	if err := a.idp.VerifyCredentials(ctx, email, password); err != nil {
		return "", a.fail(ctx, email, "idp_credentials", classifyProviderError(err))
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		return "", a.fail(ctx, email, "local_lookup", err)
	}
	if user == nil {
		a.logger.Warn("identity exists in provider but not locally", "email", email)
		return "", a.fail(ctx, email, "local_lookup", withDetail(ErrIdentityNotFound, map[string]any{"email": email}))
	}

	if !user.Enabled {
		return "", a.fail(ctx, email, "local_enabled", withDetail(ErrAccountDisabled, map[string]any{"email": email}))
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		a.logger.Error("token issue failed", "email", email, "error", err)
		return "", a.fail(ctx, email, "token", withCause(ErrInternal, err, nil))
	}

	a.activity.record(ctx, ActivityEventLoginSuccess, actorFromUser(user), email, map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})

	return token, nil
}

func (a *Authenticator) fail(ctx context.Context, email, stage string, err error) error {
	resp := ResponseFor(err)
	a.logger.Info("authentication rejected", "email", email, "stage", stage, "code", resp.Code)
	a.activity.record(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, email, map[string]any{
		"stage": stage,
		"code":  resp.Code,
	})
	return err
}

// classifyProviderError keeps the IdP's own classification when it gave one
// and otherwise reports the provider as unavailable.
func classifyProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case HasTextCode(err, TextCodeInvalidCredentials),
		HasTextCode(err, TextCodeIDPUnavailable),
		HasTextCode(err, TextCodeIdentityNotFound):
		return err
	default:
		return withCause(ErrIdentityProviderUnavailable, err, nil)
	}
}
