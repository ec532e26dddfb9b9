// Package memory provides an in-process IdentityProvider for development and
// tests. Failures can be injected per operation.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	gateway "github.com/goliatone/go-trade-gateway"
)

// Op names a provider operation for fault injection.
type Op string

const (
	OpCreate     Op = "create"
	OpVerify     Op = "verify"
	OpSetEnabled Op = "set_enabled"
	OpSetRole    Op = "set_role"
	OpFind       Op = "find"
)

type identity struct {
	profile gateway.IdentityProfile
	hash    string
}

// IdentityProvider keeps identities in a map keyed by email.
type IdentityProvider struct {
	mu         sync.RWMutex
	identities map[string]*identity
	failures   map[Op]error
	hasher     gateway.PasswordAuthenticator
	calls      map[Op]int
}

var _ gateway.IdentityProvider = (*IdentityProvider)(nil)

// New returns an empty provider hashing credentials with hasher.
func New(hasher gateway.PasswordAuthenticator) *IdentityProvider {
	return &IdentityProvider{
		identities: map[string]*identity{},
		failures:   map[Op]error{},
		calls:      map[Op]int{},
		hasher:     hasher,
	}
}

// FailOn makes every call to op fail with err until cleared. A nil err
// injects a generic unavailable error.
func (p *IdentityProvider) FailOn(op Op, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = gateway.ErrIdentityProviderUnavailable.Clone().WithMetadata(map[string]any{"op": string(op)})
	}
	p.failures[op] = err
}

// Clear removes the injected failure for op.
func (p *IdentityProvider) Clear(op Op) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, op)
}

// Calls returns how many times op was invoked.
func (p *IdentityProvider) Calls(op Op) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[op]
}

// Len returns the number of stored identities.
func (p *IdentityProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.identities)
}

func (p *IdentityProvider) begin(op Op) error {
	p.calls[op]++
	return p.failures[op]
}

func (p *IdentityProvider) CreateIdentity(_ context.Context, profile gateway.IdentityProfile, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.begin(OpCreate); err != nil {
		return "", err
	}

	email := strings.TrimSpace(profile.Email)
	if _, ok := p.identities[email]; ok {
		return "", gateway.ErrDuplicateIdentity.Clone().WithMetadata(map[string]any{"email": email})
	}

	hash, err := p.hasher.HashPassword(password)
	if err != nil {
		return "", err
	}

	profile.Email = email
	profile.ProviderID = "memory|" + uuid.NewString()
	p.identities[email] = &identity{profile: profile, hash: hash}

	return profile.ProviderID, nil
}

// VerifyCredentials checks the password only. The enabled flag is left to
// the caller so a disabled account is reported after the password check.
func (p *IdentityProvider) VerifyCredentials(_ context.Context, email, password string) error {
	p.mu.Lock()
	if err := p.begin(OpVerify); err != nil {
		p.mu.Unlock()
		return err
	}
	id, ok := p.identities[strings.TrimSpace(email)]
	var hash string
	if ok {
		hash = id.hash
	}
	p.mu.Unlock()

	if !ok {
		return gateway.ErrInvalidCredentials.Clone()
	}
	if err := p.hasher.ComparePasswordAndHash(password, hash); err != nil {
		return gateway.ErrInvalidCredentials.Clone()
	}
	return nil
}

func (p *IdentityProvider) SetEnabled(_ context.Context, email string, enabled bool) error {
	return p.mutate(OpSetEnabled, email, func(profile *gateway.IdentityProfile) {
		profile.Enabled = enabled
	})
}

func (p *IdentityProvider) SetRole(_ context.Context, email string, role gateway.Role) error {
	return p.mutate(OpSetRole, email, func(profile *gateway.IdentityProfile) {
		profile.Role = role
	})
}

// FindByEmail returns a copy of the stored profile, or nil when absent.
func (p *IdentityProvider) FindByEmail(_ context.Context, email string) (*gateway.IdentityProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.begin(OpFind); err != nil {
		return nil, err
	}

	id, ok := p.identities[strings.TrimSpace(email)]
	if !ok {
		return nil, nil
	}
	out := id.profile
	return &out, nil
}

func (p *IdentityProvider) mutate(op Op, email string, fn func(*gateway.IdentityProfile)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.begin(op); err != nil {
		return err
	}

	id, ok := p.identities[strings.TrimSpace(email)]
	if !ok {
		return gateway.ErrIdentityNotFound.Clone().WithMetadata(map[string]any{"email": email})
	}
	fn(&id.profile)
	return nil
}
