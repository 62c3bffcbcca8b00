// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-at-least-32-bytes!"

// testPassword is shared by every test account.
const testPassword = "correct horse battery staple"

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func testAccounts(t *testing.T) []Account {
	t.Helper()
	hash := hashPassword(t, testPassword)
	return []Account{
		{Username: "root", PasswordHash: hash, Name: "Root", Roles: []string{"admin"}},
		{Username: "alice", PasswordHash: hash, Name: "Alice", Email: "alice@example.com", Roles: []string{"accountant"}},
		{Username: "bob", PasswordHash: hash, Name: "Bob", Roles: []string{"user"}},
		{Username: "guest", PasswordHash: hash, Name: "Guest"},
	}
}

func newTestLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(LocalConfig{
		Secret:          []byte(testSecret),
		Issuer:          "ledgerline-test",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: time.Hour,
		Accounts:        testAccounts(t),
	})
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Revocations().Close() })
	return p
}

func signIn(t *testing.T, p *LocalProvider, username string) *Session {
	t.Helper()
	s, err := p.SignIn(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("SignIn(%s): %v", username, err)
	}
	return s
}

// fakeProvider is a scripted IdentityProvider.
type fakeProvider struct {
	mu         sync.Mutex
	resolveFn  func(token string) (*Session, error)
	refreshFn  func(token string) (*Session, error)
	revokeErr  error
	resolves   int
	refreshes  int
	revocation []*Session
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Resolve(_ context.Context, token string) (*Session, error) {
	f.mu.Lock()
	f.resolves++
	fn := f.resolveFn
	f.mu.Unlock()
	if fn == nil {
		return nil, ErrUnauthenticated
	}
	return fn(token)
}

func (f *fakeProvider) Refresh(_ context.Context, token string) (*Session, error) {
	f.mu.Lock()
	f.refreshes++
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return nil, ErrUnauthenticated
	}
	return fn(token)
}

func (f *fakeProvider) Revoke(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revocation = append(f.revocation, s)
	return f.revokeErr
}

func (f *fakeProvider) resolveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves
}

// tokenRoles resolves tokens named after role sets: "admin", "accountant",
// "user", "guest" (no roles). Anything else is rejected.
func tokenRoles(token string) (*Session, error) {
	roles := map[string][]string{
		"admin":      {"admin"},
		"accountant": {"accountant"},
		"user":       {"user"},
		"guest":      {},
	}
	r, ok := roles[token]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return &Session{Identity: &Identity{Subject: token, Roles: r}, AccessToken: token}, nil
}
