// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/ledgerline/internal/authz"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// DefaultCookieName is the session cookie read when no bearer token is sent.
const DefaultCookieName = "ledgerline_session"

type contextKey string

const sessionContextKey contextKey = "auth_session"

// Guard resolves the caller's session and enforces role requirements.
// It is stateless per request and safe for concurrent use.
type Guard struct {
	provider   IdentityProvider
	table      *authz.Table
	cookieName string
}

// NewGuard creates a guard. An empty cookieName uses DefaultCookieName.
func NewGuard(provider IdentityProvider, table *authz.Table, cookieName string) *Guard {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Guard{
		provider:   provider,
		table:      table,
		cookieName: cookieName,
	}
}

// CookieName returns the session cookie name.
func (g *Guard) CookieName() string {
	return g.cookieName
}

// Table returns the role policy table.
func (g *Guard) Table() *authz.Table {
	return g.table
}

// Credential extracts the access credential: the Authorization bearer
// token first, then the session cookie.
func (g *Guard) Credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	if c, err := r.Cookie(g.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession resolves the caller's session. A missing credential or
// identity yields ErrUnauthenticated; provider unavailability passes
// through as ErrUnavailable. Resolution is attempted once.
func (g *Guard) RequireSession(r *http.Request) (*Session, error) {
	s, err := g.resolve(r)
	g.record(r, "session", err)
	return s, err
}

// RequireRole resolves the session and checks role. An unauthenticated
// caller yields ErrUnauthenticated, never ErrForbidden.
func (g *Guard) RequireRole(r *http.Request, role authz.Role) (*Session, error) {
	check := "role:" + role.String()

	s, err := g.resolve(r)
	if err == nil && !g.table.Satisfies(role, s.Roles()) {
		err = fmt.Errorf("%w: role %q required", ErrForbidden, role)
	}

	g.record(r, check, err)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RequireAuth returns nil when the caller has a session, or the rejection
// to send.
func (g *Guard) RequireAuth(r *http.Request) *Rejection {
	_, err := g.RequireSession(r)
	return RejectionFor(err)
}

// RequireAdmin returns nil when the caller's roles satisfy admin, or the
// rejection to send.
func (g *Guard) RequireAdmin(r *http.Request) *Rejection {
	_, err := g.RequireRole(r, authz.RoleAdmin)
	return RejectionFor(err)
}

// Authenticated is chi middleware that requires a session and stores it in
// the request context.
func (g *Guard) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := g.RequireSession(r)
		if err != nil {
			RejectionFor(err).ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), s)))
	})
}

// RequireRoleMiddleware is chi middleware that requires role.
func (g *Guard) RequireRoleMiddleware(role authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := g.RequireRole(r, role)
			if err != nil {
				RejectionFor(err).ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), s)))
		})
	}
}

func (g *Guard) resolve(r *http.Request) (*Session, error) {
	if s := SessionFromContext(r.Context()); s.IsAuthenticated() {
		return s, nil
	}

	token := g.Credential(r)
	if token == "" {
		return nil, fmt.Errorf("%w: no credential presented", ErrUnauthenticated)
	}

	s, err := g.provider.Resolve(r.Context(), token)
	if err != nil {
		if isUnavailable(err) {
			return nil, err
		}
		if !errors.Is(err, ErrUnauthenticated) {
			err = fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}
		return nil, err
	}
	if !s.IsAuthenticated() {
		return nil, fmt.Errorf("%w: no identity", ErrUnauthenticated)
	}
	return s, nil
}

func (g *Guard) record(r *http.Request, check string, err error) {
	outcome := "allow"
	switch {
	case err == nil:
	case errors.Is(err, ErrForbidden):
		outcome = "forbidden"
	case isUnavailable(err):
		outcome = "unavailable"
	default:
		outcome = "unauthenticated"
	}
	GuardDecisionsTotal.WithLabelValues(check, outcome).Inc()

	event := logging.Ctx(r.Context()).Debug()
	if outcome == "unavailable" {
		event = logging.Ctx(r.Context()).Warn()
	}
	event.
		Str("check", check).
		Str("outcome", outcome).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Err(err).
		Msg("Guard decision")
}

// ContextWithSession stores s in ctx.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext returns the session stored by the guard middleware,
// or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey).(*Session) //nolint:errcheck // nil on miss
	return s
}
