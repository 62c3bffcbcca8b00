// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
)

// IdentityProvider resolves credentials into sessions.
//
// Resolve and Refresh return errors wrapping ErrUnauthenticated when the
// credential is invalid, expired, or revoked, and ErrUnavailable when the
// provider itself cannot be reached.
type IdentityProvider interface {
	// Resolve validates an access credential and returns its session.
	Resolve(ctx context.Context, token string) (*Session, error)

	// Refresh exchanges a refresh credential for a renewed session.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)

	// Revoke invalidates the credentials held by the session.
	Revoke(ctx context.Context, s *Session) error

	// Name identifies the provider in logs and metrics.
	Name() string
}

// PasswordAuthenticator signs users in with a username and password.
type PasswordAuthenticator interface {
	SignIn(ctx context.Context, username, password string) (*Session, error)
}
