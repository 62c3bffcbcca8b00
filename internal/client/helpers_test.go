// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/ledgerline/internal/auth"
)

// testInterval keeps scheduler tests fast.
const testInterval = 20 * time.Millisecond

// session builds an authenticated session whose tokens carry n, so a test
// can tell whether identity and tokens came from the same snapshot.
func session(n int, roles ...string) *auth.Session {
	return &auth.Session{
		Identity: &auth.Identity{
			Subject: fmt.Sprintf("user-%d", n),
			Name:    fmt.Sprintf("User %d", n),
			Roles:   roles,
		},
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		Expiry:       time.Now().Add(time.Hour),
	}
}

// fakeProvider is a scripted auth.IdentityProvider.
type fakeProvider struct {
	mu        sync.Mutex
	resolveFn func(ctx context.Context, token string) (*auth.Session, error)
	refreshFn func(ctx context.Context, token string) (*auth.Session, error)
	signInFn  func(ctx context.Context, username, password string) (*auth.Session, error)
	revokeErr error

	refreshes   int
	revocations []*auth.Session
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Resolve(ctx context.Context, token string) (*auth.Session, error) {
	if f.resolveFn == nil {
		return nil, auth.ErrUnauthenticated
	}
	return f.resolveFn(ctx, token)
}

func (f *fakeProvider) Refresh(ctx context.Context, token string) (*auth.Session, error) {
	f.mu.Lock()
	f.refreshes++
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return nil, auth.ErrUnauthenticated
	}
	return fn(ctx, token)
}

func (f *fakeProvider) Revoke(_ context.Context, s *auth.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revocations = append(f.revocations, s.Clone())
	return f.revokeErr
}

func (f *fakeProvider) SignIn(ctx context.Context, username, password string) (*auth.Session, error) {
	if f.signInFn == nil {
		return nil, auth.ErrUnauthenticated
	}
	return f.signInFn(ctx, username, password)
}

func (f *fakeProvider) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *fakeProvider) revoked() []*auth.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*auth.Session(nil), f.revocations...)
}

// rotatingRefresh returns a refreshFn that hands out session start+1,
// start+2, ... on each call.
func rotatingRefresh(start int, roles ...string) func(context.Context, string) (*auth.Session, error) {
	var mu sync.Mutex
	n := start
	return func(context.Context, string) (*auth.Session, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return session(n, roles...), nil
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recorder collects listener deliveries.
type recorder struct {
	mu       sync.Mutex
	sessions []*auth.Session
}

func (r *recorder) listen(s *auth.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *recorder) last() *auth.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[len(r.sessions)-1]
}
