package gateway_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gateway "github.com/goliatone/go-trade-gateway"
	"github.com/goliatone/go-trade-gateway/provider/memory"
)

func aliceRegistration() gateway.Registration {
	return gateway.Registration{
		FirstName: "Alice",
		LastName:  "Smith",
		Email:     "alice@example.com",
		Password:  "correctpw",
		Role:      gateway.RoleTrader,
	}
}

func newMirror(t *testing.T) (*gateway.IdentityMirror, *memory.IdentityProvider, *recordingSink) {
	t.Helper()
	idp := memory.New(testHasher())
	sink := &recordingSink{}
	mirror := gateway.NewIdentityMirror(gateway.NewUsersRepository(newTestDB(t)), idp, testHasher()).
		WithActivitySink(sink).
		WithRollbackPolicy(3, 0)
	return mirror, idp, sink
}

func TestRegisterMirrorsIntoProvider(t *testing.T) {
	ctx := context.Background()
	mirror, idp, sink := newMirror(t)

	user, err := mirror.Register(ctx, aliceRegistration())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.True(t, user.Enabled)
	assert.Equal(t, gateway.RoleTrader, user.Role)
	assert.NotEqual(t, "correctpw", user.PasswordHash)
	require.NoError(t, testHasher().ComparePasswordAndHash("correctpw", user.PasswordHash))

	profile, err := idp.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, user.ID, profile.AppUserID, "provider record links the local id")

	found, err := mirror.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Enabled)

	assert.Equal(t, []gateway.ActivityEventType{gateway.ActivityEventIdentityRegistered}, sink.types())
}

func TestRegisterDefaultsRoleToTrader(t *testing.T) {
	mirror, _, _ := newMirror(t)

	req := aliceRegistration()
	req.Role = ""
	user, err := mirror.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, gateway.RoleTrader, user.Role)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	mirror, idp, _ := newMirror(t)

	_, err := mirror.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	_, err = mirror.Register(ctx, aliceRegistration())
	assertCode(t, err, gateway.TextCodeDuplicateIdentity)
	assert.Equal(t, 1, idp.Calls(memory.OpCreate), "provider is not contacted for a duplicate")
}

func TestRegisterValidatesInput(t *testing.T) {
	mirror, _, _ := newMirror(t)

	req := aliceRegistration()
	req.Email = "  "
	_, err := mirror.Register(context.Background(), req)
	assertCode(t, err, gateway.TextCodeMissingRequiredField)

	req = aliceRegistration()
	req.Role = "ROOT"
	_, err = mirror.Register(context.Background(), req)
	assertCode(t, err, gateway.TextCodeInvalidInput)
}

func TestRegisterRollsBackWhenProviderFails(t *testing.T) {
	ctx := context.Background()
	mirror, idp, sink := newMirror(t)
	idp.FailOn(memory.OpCreate, errors.New("connection refused"))

	_, err := mirror.Register(ctx, aliceRegistration())
	assertCode(t, err, gateway.TextCodeIDPUnavailable)

	found, err := mirror.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, found, "no orphaned local record")
	assert.Equal(t, 0, idp.Len())
	assert.Contains(t, sink.types(), gateway.ActivityEventIdentityRolledBack)

	// The email is free again once the provider recovers.
	idp.Clear(memory.OpCreate)
	_, err = mirror.Register(ctx, aliceRegistration())
	require.NoError(t, err)
}

func TestRegisterRollbackRetries(t *testing.T) {
	users := new(MockUsers)
	idp := new(MockIdentityProvider)

	stored := &gateway.User{ID: 9, Email: "alice@example.com", Role: gateway.RoleTrader, Enabled: true}
	users.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, sql.ErrNoRows)
	users.On("Register", mock.Anything, mock.AnythingOfType("*gateway.User")).Return(stored, nil)
	idp.On("CreateIdentity", mock.Anything, mock.Anything, "correctpw").Return("", errors.New("timeout"))
	users.On("Delete", mock.Anything, int64(9)).Return(errors.New("database is locked")).Twice()
	users.On("Delete", mock.Anything, int64(9)).Return(nil).Once()

	mirror := gateway.NewIdentityMirror(users, idp, testHasher()).WithRollbackPolicy(3, 0)

	_, err := mirror.Register(context.Background(), aliceRegistration())
	assertCode(t, err, gateway.TextCodeIDPUnavailable)
	users.AssertNumberOfCalls(t, "Delete", 3)
}

func TestRegisterRollbackExhaustedIsReported(t *testing.T) {
	users := new(MockUsers)
	idp := new(MockIdentityProvider)
	sink := &recordingSink{}

	stored := &gateway.User{ID: 9, Email: "alice@example.com", Role: gateway.RoleTrader, Enabled: true}
	users.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, sql.ErrNoRows)
	users.On("Register", mock.Anything, mock.AnythingOfType("*gateway.User")).Return(stored, nil)
	idp.On("CreateIdentity", mock.Anything, mock.Anything, "correctpw").Return("", errors.New("timeout"))
	users.On("Delete", mock.Anything, int64(9)).Return(errors.New("database is locked"))

	mirror := gateway.NewIdentityMirror(users, idp, testHasher()).
		WithRollbackPolicy(2, 0).
		WithActivitySink(sink)

	_, err := mirror.Register(context.Background(), aliceRegistration())
	assertCode(t, err, gateway.TextCodeIDPUnavailable)
	users.AssertNumberOfCalls(t, "Delete", 2)

	require.NotEmpty(t, sink.events)
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, gateway.ActivityEventMirrorFailed, last.EventType)
	assert.Equal(t, "rollback", last.Metadata["op"])
	assert.NotContains(t, sink.types(), gateway.ActivityEventIdentityRolledBack)
}

func TestRegisterRollbackSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users := gateway.NewUsersRepository(newTestDB(t))
	idp := new(MockIdentityProvider)
	idp.On("CreateIdentity", mock.Anything, mock.Anything, "correctpw").
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled)

	mirror := gateway.NewIdentityMirror(users, idp, testHasher()).WithRollbackPolicy(1, 0)

	_, err := mirror.Register(ctx, aliceRegistration())
	assertCode(t, err, gateway.TextCodeIDPUnavailable)

	_, err = users.GetByEmail(context.Background(), "alice@example.com")
	assert.Error(t, err, "local row removed although the caller went away")
}

func TestSetEnabled(t *testing.T) {
	ctx := context.Background()
	mirror, idp, sink := newMirror(t)

	_, err := mirror.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	enabled, err := mirror.SetEnabled(ctx, "alice@example.com", false)
	require.NoError(t, err)
	assert.False(t, enabled)

	user, err := mirror.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, user.Enabled)

	profile, err := idp.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, profile.Enabled)

	enabled, err = mirror.SetEnabled(ctx, "alice@example.com", true)
	require.NoError(t, err)
	assert.True(t, enabled)

	assert.Contains(t, sink.types(), gateway.ActivityEventIdentityDisabled)
	assert.Contains(t, sink.types(), gateway.ActivityEventIdentityEnabled)
}

func TestSetEnabledUnknownEmail(t *testing.T) {
	mirror, idp, _ := newMirror(t)

	_, err := mirror.SetEnabled(context.Background(), "ghost@example.com", false)
	assertCode(t, err, gateway.TextCodeIdentityNotFound)
	assert.Equal(t, 0, idp.Calls(memory.OpSetEnabled))
}

func TestSetEnabledProviderFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	mirror, idp, sink := newMirror(t)

	_, err := mirror.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	idp.FailOn(memory.OpSetEnabled, nil)

	enabled, err := mirror.SetEnabled(ctx, "alice@example.com", false)
	require.NoError(t, err)
	assert.False(t, enabled)

	user, err := mirror.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, user.Enabled, "local store stays authoritative")

	profile, err := idp.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, profile.Enabled, "provider left to reconcile")

	assert.Contains(t, sink.types(), gateway.ActivityEventMirrorFailed)
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	mirror, idp, _ := newMirror(t)

	_, err := mirror.Register(ctx, aliceRegistration())
	require.NoError(t, err)

	user, err := mirror.AssignRole(ctx, "alice@example.com", gateway.RoleObserver)
	require.NoError(t, err)
	assert.Equal(t, gateway.RoleObserver, user.Role)

	profile, err := idp.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, gateway.RoleObserver, profile.Role)

	_, err = mirror.AssignRole(ctx, "alice@example.com", "ROOT")
	assertCode(t, err, gateway.TextCodeInvalidInput)

	_, err = mirror.AssignRole(ctx, "ghost@example.com", gateway.RoleAdmin)
	assertCode(t, err, gateway.TextCodeIdentityNotFound)
}

func TestFindByEmailAbsent(t *testing.T) {
	mirror, _, _ := newMirror(t)

	user, err := mirror.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestActivityActorFromContext(t *testing.T) {
	mirror, _, sink := newMirror(t)

	_, err := mirror.Register(context.Background(), aliceRegistration())
	require.NoError(t, err)

	admin := &gateway.User{ID: 1, Email: "root@example.com", Role: gateway.RoleAdmin}
	ctx := gateway.WithContext(context.Background(), admin)

	_, err = mirror.SetEnabled(ctx, "alice@example.com", false)
	require.NoError(t, err)

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, gateway.ActivityEventIdentityDisabled, last.EventType)
	assert.Equal(t, "root@example.com", last.Actor.ID)
	assert.Equal(t, "user", last.Actor.Type)
}
