// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/authz"
	"github.com/tomtom215/ledgerline/internal/cors"
)

const (
	testSecret   = "router-test-secret-at-least-32-bytes"
	testPassword = "correct horse battery staple"
	appOrigin    = "https://erp.example.com"
)

type testRouter struct {
	handler http.Handler
	local   *auth.LocalProvider
}

type routerOptions struct {
	signInLimit RateLimitConfig
	breaker     BreakerStater
	noPasswords bool
}

func newTestRouter(t *testing.T, opts routerOptions) *testRouter {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	local, err := auth.NewLocalProvider(auth.LocalConfig{
		Secret:          []byte(testSecret),
		Issuer:          "ledgerline-test",
		AccessTokenTTL:  5 * time.Minute,
		RefreshTokenTTL: time.Hour,
		Accounts: []auth.Account{
			{Username: "root", PasswordHash: string(hash), Roles: []string{"admin"}},
			{Username: "alice", PasswordHash: string(hash), Roles: []string{"accountant"}},
			{Username: "bob", PasswordHash: string(hash), Roles: []string{"user"}},
			{Username: "guest", PasswordHash: string(hash)},
		},
	})
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	t.Cleanup(func() { _ = local.Revocations().Close() })

	guard := auth.NewGuard(local, authz.MustDefaultTable(), "")
	hc := auth.HandlersConfig{Provider: local, Guard: guard}
	if !opts.noPasswords {
		hc.Passwords = local
	}

	return &testRouter{
		local: local,
		handler: NewRouter(RouterConfig{
			Guard:       guard,
			Auth:        auth.NewHandlers(hc),
			Origins:     cors.NewValidator(cors.Config{AppURL: appOrigin}),
			SignInLimit: opts.signInLimit,
			Revocations: local.Revocations(),
			Breaker:     opts.breaker,
		}),
	}
}

func (tr *testRouter) token(t *testing.T, username string) string {
	t.Helper()
	if username == "" {
		return ""
	}
	s, err := tr.local.SignIn(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("SignIn(%s): %v", username, err)
	}
	return s.AccessToken
}

func (tr *testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tr.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RoleEnforcement(t *testing.T) {
	tr := newTestRouter(t, routerOptions{})

	tests := []struct {
		path string
		user string
		want int
	}{
		{"/api/ledger/summary", "", http.StatusUnauthorized},
		{"/api/ledger/summary", "guest", http.StatusForbidden},
		{"/api/ledger/summary", "bob", http.StatusOK},
		{"/api/ledger/summary", "alice", http.StatusOK},
		{"/api/ledger/summary", "root", http.StatusOK},
		{"/api/ledger/journal", "", http.StatusUnauthorized},
		{"/api/ledger/journal", "bob", http.StatusForbidden},
		{"/api/ledger/journal", "alice", http.StatusOK},
		{"/api/ledger/journal", "root", http.StatusOK},
		{"/api/admin/users", "", http.StatusUnauthorized},
		{"/api/admin/users", "alice", http.StatusForbidden},
		{"/api/admin/users", "root", http.StatusOK},
		{"/api/auth/session", "", http.StatusUnauthorized},
		{"/api/auth/session", "guest", http.StatusOK},
	}

	for _, tt := range tests {
		name := tt.user
		if name == "" {
			name = "anonymous"
		}
		t.Run(tt.path+"/"+name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tok := tr.token(t, tt.user); tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
			rec := tr.do(req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_SurfaceIdentifiesCaller(t *testing.T) {
	tr := newTestRouter(t, routerOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/journal", nil)
	req.Header.Set("Authorization", "Bearer "+tr.token(t, "alice"))
	rec := tr.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Surface string   `json:"surface"`
			Subject string   `json:"subject"`
			Roles   []string `json:"roles"`
		} `json:"data"`
		Metadata Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "success" || resp.Data.Surface != "ledger.journal" || resp.Data.Subject != "alice" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Metadata.RequestID == "" {
		t.Error("metadata.request_id is empty")
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}

func signInRequest(t *testing.T, username, password string) *http.Request {
	t.Helper()
	body, err := json.Marshal(auth.SignInRequest{Username: username, Password: password})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signin", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_SignInRateLimit(t *testing.T) {
	tr := newTestRouter(t, routerOptions{signInLimit: RateLimitConfig{Requests: 2, Window: time.Minute}})

	for i := 0; i < 2; i++ {
		if rec := tr.do(signInRequest(t, "bob", "wrong")); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}

	rec := tr.do(signInRequest(t, "bob", testPassword))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate_limited") {
		t.Errorf("body = %s", rec.Body.String())
	}

	// Other endpoints are not throttled by the sign-in limiter.
	if rec := tr.do(httptest.NewRequest(http.MethodGet, "/api/health/live", nil)); rec.Code != http.StatusOK {
		t.Errorf("health after limit status = %d", rec.Code)
	}
}

func TestRouter_SignInDisabledWithoutPasswords(t *testing.T) {
	tr := newTestRouter(t, routerOptions{noPasswords: true})

	rec := tr.do(signInRequest(t, "bob", testPassword))
	if rec.Code != http.StatusNotFound {
		t.Errorf("signin status = %d, want 404", rec.Code)
	}
}

func TestRouter_CORS(t *testing.T) {
	tr := newTestRouter(t, routerOptions{})

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"app origin", appOrigin, appOrigin},
		{"foreign origin", "https://evil.example.com", ""},
		{"preview origin outside preview mode", "https://ledgerline-git-x.vercel.app", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/auth/session", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			rec := tr.do(req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.want)
			}
			if tt.want != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("credentials not allowed for accepted origin")
			}
		})
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	tr := newTestRouter(t, routerOptions{})

	rec := tr.do(httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS sent over plain HTTP")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health/live", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	if got := tr.do(req).Header().Get("Strict-Transport-Security"); got == "" {
		t.Error("HSTS missing behind TLS proxy")
	}
}

type stubBreaker struct{ state gobreaker.State }

func (s stubBreaker) State() gobreaker.State { return s.state }

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name    string
		breaker BreakerStater
		want    int
	}{
		{"no breaker", nil, http.StatusOK},
		{"closed", stubBreaker{gobreaker.StateClosed}, http.StatusOK},
		{"half open", stubBreaker{gobreaker.StateHalfOpen}, http.StatusOK},
		{"open", stubBreaker{gobreaker.StateOpen}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, routerOptions{breaker: tt.breaker})

			if rec := tr.do(httptest.NewRequest(http.MethodGet, "/api/health/live", nil)); rec.Code != http.StatusOK {
				t.Errorf("live status = %d", rec.Code)
			}
			rec := tr.do(httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
			if rec.Code != tt.want {
				t.Errorf("ready status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRouter_ReadyFailsWhenRevocationsClosed(t *testing.T) {
	tr := newTestRouter(t, routerOptions{})
	if err := tr.local.Revocations().Close(); err != nil {
		t.Fatal(err)
	}

	rec := tr.do(httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}
}

func TestRouter_MetricsAndFallbacks(t *testing.T) {
	tr := newTestRouter(t, routerOptions{})

	tr.do(httptest.NewRequest(http.MethodGet, "/api/health/live", nil))
	rec := tr.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("http_requests_total not exported")
	}

	if rec := tr.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", rec.Code)
	}
	if rec := tr.do(httptest.NewRequest(http.MethodDelete, "/api/ledger/summary", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d, want 405", rec.Code)
	}
}
