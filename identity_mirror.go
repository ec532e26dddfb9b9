package gateway

import (
	"context"
	"strings"
	"time"
)

const (
	defaultRollbackAttempts = 3
	defaultRollbackBackoff  = 100 * time.Millisecond
)

// Registration is the input to IdentityMirror.Register.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      Role
}

// IdentityMirror keeps the local user store and the identity provider in
// step. The local store is written first; IdP failures during registration
// are compensated by deleting the local row, while IdP failures on later
// mutations are logged and left to reconcile.
type IdentityMirror struct {
	users            Users
	idp              IdentityProvider
	hasher           PasswordAuthenticator
	logger           Logger
	activity         activityRecorder
	rollbackAttempts int
	rollbackBackoff  time.Duration
}

// NewIdentityMirror returns an IdentityMirror
func NewIdentityMirror(users Users, idp IdentityProvider, hasher PasswordAuthenticator) *IdentityMirror {
	logger := NewNopLogger()
	return &IdentityMirror{
		users:            users,
		idp:              idp,
		hasher:           hasher,
		logger:           logger,
		activity:         newActivityRecorder(logger),
		rollbackAttempts: defaultRollbackAttempts,
		rollbackBackoff:  defaultRollbackBackoff,
	}
}

func (m *IdentityMirror) WithLogger(logger Logger) *IdentityMirror {
	m.logger = normalizeLogger(logger)
	m.activity.logger = m.logger
	return m
}

// WithActivitySink configures an ActivitySink for emitting identity events.
func (m *IdentityMirror) WithActivitySink(sink ActivitySink) *IdentityMirror {
	m.activity.sink = normalizeActivitySink(sink)
	return m
}

// WithRollbackPolicy sets how many times the compensating delete is tried
// and the base delay between attempts. The delay doubles after each failure.
func (m *IdentityMirror) WithRollbackPolicy(attempts int, backoff time.Duration) *IdentityMirror {
	if attempts > 0 {
		m.rollbackAttempts = attempts
	}
	if backoff >= 0 {
		m.rollbackBackoff = backoff
	}
	return m
}

// Register creates the local user and mirrors it into the IdP.
func (m *IdentityMirror) Register(ctx context.Context, req Registration) (*User, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, withDetail(ErrMissingRequiredField, map[string]any{"fields": "email,password"})
	}

	role := roleOrDefault(req.Role)
	if !role.IsValid() {
		return nil, withDetail(ErrInvalidInput, map[string]any{"role": string(req.Role)})
	}

	existing, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, withDetail(ErrDuplicateIdentity, map[string]any{"email": email})
	}

	hash, err := m.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, withCause(ErrInternal, err, nil)
	}

	user, err := m.users.Register(ctx, &User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Enabled:      true,
	})
	if err != nil {
		if HasTextCode(err, TextCodeDuplicateIdentity) {
			return nil, err
		}
		m.logger.Error("register local user failed", "email", email, "error", err)
		return nil, withCause(ErrInternal, err, nil)
	}

	providerID, err := m.idp.CreateIdentity(ctx, IdentityProfile{
		AppUserID: user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		Enabled:   true,
	}, req.Password)
	if err != nil {
		m.logger.Error("identity provider create failed, rolling back local user",
			"email", email,
			"user_id", user.ID,
			"error", err,
		)
		m.rollback(ctx, user)
		return nil, withCause(ErrIdentityProviderUnavailable, err, map[string]any{"email": email})
	}

	m.logger.Info("identity registered", "email", email, "user_id", user.ID, "provider_id", providerID)
	m.activity.record(ctx, ActivityEventIdentityRegistered, actorFromUser(user), email, map[string]any{
		"user_id":     user.ID,
		"role":        string(user.Role),
		"provider_id": providerID,
	})

	return user, nil
}

// rollback deletes the local user created by a registration whose IdP leg
// failed. It runs detached from the caller's cancellation and retries with
// exponential backoff.
func (m *IdentityMirror) rollback(ctx context.Context, user *User) {
	ctx = context.WithoutCancel(ctx)

	delay := m.rollbackBackoff
	var err error
	for attempt := 1; attempt <= m.rollbackAttempts; attempt++ {
		err = m.users.Delete(ctx, user.ID)
		if err == nil || isNotFound(err) {
			m.activity.record(ctx, ActivityEventIdentityRolledBack, ActorRef{Type: "system"}, user.Email, map[string]any{
				"user_id":  user.ID,
				"attempts": attempt,
			})
			return
		}

		m.logger.Warn("rollback of local user failed",
			"email", user.Email,
			"user_id", user.ID,
			"attempt", attempt,
			"error", err,
		)

		if attempt < m.rollbackAttempts && delay > 0 {
			time.Sleep(delay)
			delay *= 2
		}
	}

	m.logger.Error("rollback of local user exhausted retries, manual cleanup required",
		"email", user.Email,
		"user_id", user.ID,
		"error", err,
	)
	m.activity.record(ctx, ActivityEventMirrorFailed, ActorRef{Type: "system"}, user.Email, map[string]any{
		"op":       "rollback",
		"user_id":  user.ID,
		"attempts": m.rollbackAttempts,
		"error":    err.Error(),
	})
}

// SetEnabled toggles the local flag and mirrors it to the IdP on a best
// effort basis. It returns the new flag.
func (m *IdentityMirror) SetEnabled(ctx context.Context, email string, enabled bool) (bool, error) {
	user, err := m.users.SetEnabled(ctx, strings.TrimSpace(email), enabled)
	if err != nil {
		if isNotFound(err) {
			return false, withDetail(ErrIdentityNotFound, map[string]any{"email": email})
		}
		return false, withCause(ErrInternal, err, nil)
	}

	if err := m.idp.SetEnabled(ctx, user.Email, enabled); err != nil {
		m.mirrorFailed(ctx, user, "set_enabled", err)
	}

	event := ActivityEventIdentityDisabled
	if enabled {
		event = ActivityEventIdentityEnabled
	}
	m.activity.record(ctx, event, ActorRef{}, user.Email, map[string]any{"user_id": user.ID})

	return user.Enabled, nil
}

// AssignRole changes the user's role locally and mirrors it to the IdP on a
// best effort basis.
func (m *IdentityMirror) AssignRole(ctx context.Context, email string, role Role) (*User, error) {
	if !role.IsValid() {
		return nil, withDetail(ErrInvalidInput, map[string]any{"role": string(role)})
	}

	user, err := m.users.SetRole(ctx, strings.TrimSpace(email), role)
	if err != nil {
		if isNotFound(err) {
			return nil, withDetail(ErrIdentityNotFound, map[string]any{"email": email})
		}
		return nil, withCause(ErrInternal, err, nil)
	}

	if err := m.idp.SetRole(ctx, user.Email, role); err != nil {
		m.mirrorFailed(ctx, user, "set_role", err)
	}

	m.activity.record(ctx, ActivityEventIdentityRoleChanged, ActorRef{}, user.Email, map[string]any{
		"user_id": user.ID,
		"role":    string(role),
	})

	return user, nil
}

// FindByEmail returns the local user, or nil when none exists.
func (m *IdentityMirror) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := m.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, withCause(ErrInternal, err, nil)
	}
	return user, nil
}

func (m *IdentityMirror) mirrorFailed(ctx context.Context, user *User, op string, err error) {
	m.logger.Warn("identity provider mirror failed, local state kept",
		"op", op,
		"email", user.Email,
		"error", err,
	)
	m.activity.record(ctx, ActivityEventMirrorFailed, ActorRef{}, user.Email, map[string]any{
		"op":    op,
		"error": err.Error(),
	})
}
