// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lensportal/lensportal-backend/pkg/identity"
)

// Provider keeps accounts in memory keyed by email. Set the Fail* fields to
// make the matching call return an error.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*identity.Account
	nextID   int

	Created   int
	Revoked   map[string]int
	Passwords map[string]string

	FailLookup  error
	FailCreate  error
	FailClaims  error
	FailDisable error
	FailLink    error
	LinkPrefix  string
}

var _ identity.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		accounts:   map[string]*identity.Account{},
		Revoked:    map[string]int{},
		Passwords:  map[string]string{},
		LinkPrefix: "https://auth.example.test/setup?email=",
	}
}

// Seed registers an existing account and returns it.
func (p *Provider) Seed(uid, email string) *identity.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	account := &identity.Account{UID: uid, Email: normalize(email), EmailVerified: true, Claims: map[string]any{}}
	p.accounts[account.Email] = account
	return account
}

// Account returns a copy of the stored account for email, or nil.
func (p *Provider) Account(email string) *identity.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	account, ok := p.accounts[normalize(email)]
	if !ok {
		return nil
	}
	clone := *account
	clone.Claims = make(map[string]any, len(account.Claims))
	for k, v := range account.Claims {
		clone.Claims[k] = v
	}
	return &clone
}

func (p *Provider) LookupByEmail(_ context.Context, email string) (*identity.Account, error) {
	if p.FailLookup != nil {
		return nil, p.FailLookup
	}
	if account := p.Account(email); account != nil {
		return account, nil
	}
	return nil, identity.ErrNotFound
}

func (p *Provider) CreateAccount(_ context.Context, email, password string) (*identity.Account, error) {
	if p.FailCreate != nil {
		return nil, p.FailCreate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := normalize(email)
	if _, exists := p.accounts[key]; exists {
		return nil, fmt.Errorf("email %s already exists", key)
	}
	p.nextID++
	p.Created++
	account := &identity.Account{UID: fmt.Sprintf("uid-%d", p.nextID), Email: key, EmailVerified: true, Claims: map[string]any{}}
	p.accounts[key] = account
	p.Passwords[key] = password
	clone := *account
	return &clone, nil
}

func (p *Provider) SetClaims(_ context.Context, uid string, claims map[string]any) error {
	if p.FailClaims != nil {
		return p.FailClaims
	}
	account, err := p.byUID(uid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	account.Claims = claims
	return nil
}

func (p *Provider) SetDisabled(_ context.Context, uid string, disabled bool) error {
	if p.FailDisable != nil {
		return p.FailDisable
	}
	account, err := p.byUID(uid)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	account.Disabled = disabled
	return nil
}

func (p *Provider) RevokeSessions(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Revoked[uid]++
	return nil
}

func (p *Provider) PasswordSetupLink(_ context.Context, email string) (string, error) {
	if p.FailLink != nil {
		return "", p.FailLink
	}
	return p.LinkPrefix + normalize(email), nil
}

func (p *Provider) byUID(uid string) (*identity.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, account := range p.accounts {
		if account.UID == uid {
			return account, nil
		}
	}
	return nil, fmt.Errorf("uid %s not found", uid)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
