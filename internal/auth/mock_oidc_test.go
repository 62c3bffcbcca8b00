// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// mockIssuer is a minimal OpenID Connect issuer: discovery, JWKS, a
// refresh_token grant, and token revocation.
type mockIssuer struct {
	t        *testing.T
	server   *httptest.Server
	key      *rsa.PrivateKey
	keyID    string
	clientID string

	mu            sync.Mutex
	refreshTokens map[string]jwt.MapClaims
	revoked       []string
	// failToken makes the token endpoint answer 503.
	failToken bool
}

func newMockIssuer(t *testing.T, clientID string) *mockIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	m := &mockIssuer{
		t:             t,
		key:           key,
		keyID:         uuid.NewString(),
		clientID:      clientID,
		refreshTokens: make(map[string]jwt.MapClaims),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", m.handleDiscovery)
	mux.HandleFunc("/jwks", m.handleJWKS)
	mux.HandleFunc("/token", m.handleToken)
	mux.HandleFunc("/revoke", m.handleRevoke)
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockIssuer) issuer() string {
	return m.server.URL
}

func (m *mockIssuer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	writeTestJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                                m.issuer(),
		"authorization_endpoint":                m.issuer() + "/authorize",
		"token_endpoint":                        m.issuer() + "/token",
		"jwks_uri":                              m.issuer() + "/jwks",
		"revocation_endpoint":                   m.issuer() + "/revoke",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "profile", "email"},
	})
}

func (m *mockIssuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	pub := m.key.PublicKey
	writeTestJSON(w, http.StatusOK, map[string]interface{}{
		"keys": []map[string]interface{}{{
			"kty": "RSA",
			"kid": m.keyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (m *mockIssuer) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	fail := m.failToken
	m.mu.Unlock()
	if fail {
		writeTestJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":             "temporarily_unavailable",
			"error_description": "maintenance",
		})
		return
	}

	if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "refresh_token" {
		writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	old := r.Form.Get("refresh_token")
	m.mu.Lock()
	claims, ok := m.refreshTokens[old]
	if ok {
		delete(m.refreshTokens, old)
	}
	m.mu.Unlock()
	if !ok {
		writeTestJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "refresh token not found",
		})
		return
	}

	idToken := m.idToken(claims, time.Hour)
	next := m.storeRefreshToken(claims)
	writeTestJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  uuid.NewString(),
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": next,
		"id_token":      idToken,
	})
}

func (m *mockIssuer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.revoked = append(m.revoked, r.Form.Get("token"))
	delete(m.refreshTokens, r.Form.Get("token"))
	m.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// idToken signs an ID token carrying extra claims.
func (m *mockIssuer) idToken(extra jwt.MapClaims, ttl time.Duration) string {
	m.t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": m.issuer(),
		"aud": m.clientID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = m.keyID
	signed, err := tok.SignedString(m.key)
	if err != nil {
		m.t.Fatalf("sign id token: %v", err)
	}
	return signed
}

// storeRefreshToken registers a refresh token that yields claims.
func (m *mockIssuer) storeRefreshToken(claims jwt.MapClaims) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.refreshTokens[token] = claims
	m.mu.Unlock()
	return token
}

func (m *mockIssuer) setFailToken(fail bool) {
	m.mu.Lock()
	m.failToken = fail
	m.mu.Unlock()
}

func (m *mockIssuer) revokedTokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.revoked...)
}

func writeTestJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
