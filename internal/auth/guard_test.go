// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ledgerline/internal/authz"
)

func newTestGuard(t *testing.T, p IdentityProvider) *Guard {
	t.Helper()
	return NewGuard(p, authz.MustDefaultTable(), "")
}

func requestWithBearer(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/ledger/summary", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestGuard_Credential(t *testing.T) {
	g := newTestGuard(t, &fakeProvider{})

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"none", "", "", ""},
		{"bearer", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"cookie", "", "fromcookie", "fromcookie"},
		{"header wins over cookie", "Bearer fromheader", "fromcookie", "fromheader"},
		{"basic scheme falls back to cookie", "Basic dXNlcg==", "fromcookie", "fromcookie"},
		{"empty bearer", "Bearer ", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: tt.cookie})
			}
			if got := g.Credential(r); got != tt.want {
				t.Errorf("Credential() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuard_RequireRole(t *testing.T) {
	g := newTestGuard(t, &fakeProvider{resolveFn: tokenRoles})

	tests := []struct {
		token   string
		role    authz.Role
		wantErr error
	}{
		{"", authz.RoleUser, ErrUnauthenticated},
		{"bogus", authz.RoleAdmin, ErrUnauthenticated},
		{"admin", authz.RoleAdmin, nil},
		{"admin", authz.RoleAccountant, nil},
		{"admin", authz.RoleUser, nil},
		{"accountant", authz.RoleAdmin, ErrForbidden},
		{"accountant", authz.RoleAccountant, nil},
		{"accountant", authz.RoleUser, nil},
		{"user", authz.RoleAccountant, ErrForbidden},
		{"user", authz.RoleUser, nil},
		{"guest", authz.RoleUser, ErrForbidden},
		{"guest", authz.RoleOnlyGuest, nil},
		{"admin", authz.RoleOnlyGuest, ErrForbidden},
		{"user", "unknown-role", ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.token+"->"+tt.role.String(), func(t *testing.T) {
			s, err := g.RequireRole(requestWithBearer(tt.token), tt.role)
			if tt.wantErr == nil {
				if err != nil || !s.IsAuthenticated() {
					t.Fatalf("RequireRole() = %v, %v", s, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RequireRole() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGuard_UnauthenticatedBeatsForbidden(t *testing.T) {
	g := newTestGuard(t, &fakeProvider{resolveFn: tokenRoles})

	rej := g.RequireAdmin(requestWithBearer(""))
	if rej == nil || rej.Status != http.StatusUnauthorized {
		t.Fatalf("RequireAdmin(no credential) = %+v, want 401", rej)
	}
	rej = g.RequireAdmin(requestWithBearer("user"))
	if rej == nil || rej.Status != http.StatusForbidden {
		t.Fatalf("RequireAdmin(user) = %+v, want 403", rej)
	}
	if rej := g.RequireAdmin(requestWithBearer("admin")); rej != nil {
		t.Fatalf("RequireAdmin(admin) = %+v, want nil", rej)
	}
}

func TestGuard_UnavailableIsNotRetried(t *testing.T) {
	fake := &fakeProvider{resolveFn: func(string) (*Session, error) {
		return nil, ErrUnavailable
	}}
	g := newTestGuard(t, fake)

	rej := g.RequireAuth(requestWithBearer("admin"))
	if rej == nil || rej.Status != http.StatusServiceUnavailable {
		t.Fatalf("RequireAuth() = %+v, want 503", rej)
	}
	if got := fake.resolveCount(); got != 1 {
		t.Errorf("Resolve called %d times, want 1", got)
	}
}

func TestGuard_ProviderReturningNoIdentity(t *testing.T) {
	g := newTestGuard(t, &fakeProvider{resolveFn: func(string) (*Session, error) {
		return Absent(), nil
	}})
	if _, err := g.RequireSession(requestWithBearer("x")); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("RequireSession() = %v, want ErrUnauthenticated", err)
	}
}

func TestGuard_Middleware(t *testing.T) {
	g := newTestGuard(t, &fakeProvider{resolveFn: tokenRoles})

	r := chi.NewRouter()
	r.With(g.Authenticated).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Subject", SessionFromContext(r.Context()).Subject())
	})
	r.With(g.RequireRoleMiddleware(authz.RoleAccountant)).Get("/journal", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		path    string
		token   string
		want    int
		subject string
	}{
		{"/me", "", http.StatusUnauthorized, ""},
		{"/me", "guest", http.StatusOK, "guest"},
		{"/journal", "", http.StatusUnauthorized, ""},
		{"/journal", "user", http.StatusForbidden, ""},
		{"/journal", "accountant", http.StatusOK, ""},
		{"/journal", "admin", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.subject != "" && rec.Header().Get("X-Subject") != tt.subject {
				t.Errorf("subject = %q", rec.Header().Get("X-Subject"))
			}
		})
	}
}
