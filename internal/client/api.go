// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ledgerline/internal/auth"
)

// APIProviderName identifies the API client in logs and metrics.
const APIProviderName = "api"

const maxResponseBody = 1 << 20

// Ensure APIClient can stand in for a server-side provider.
var (
	_ auth.IdentityProvider      = (*APIClient)(nil)
	_ auth.PasswordAuthenticator = (*APIClient)(nil)
)

// APIClient talks to the Ledgerline auth endpoints.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for baseURL. A zero timeout means 15s.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewAPIClientWithHTTPClient creates a client using hc.
func NewAPIClientWithHTTPClient(baseURL string, hc *http.Client) *APIClient {
	return &APIClient{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: hc}
}

// Name implements auth.IdentityProvider.
func (c *APIClient) Name() string {
	return APIProviderName
}

// SignIn implements auth.PasswordAuthenticator.
func (c *APIClient) SignIn(ctx context.Context, username, password string) (*auth.Session, error) {
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", "",
		auth.SignInRequest{Username: username, Password: password}, &s)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve implements auth.IdentityProvider. The server never echoes tokens,
// so the returned session carries token as its access token.
func (c *APIClient) Resolve(ctx context.Context, token string) (*auth.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no access token", auth.ErrUnauthenticated)
	}
	var s auth.Session
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", token, nil, &s); err != nil {
		return nil, err
	}
	s.AccessToken = token
	return &s, nil
}

// Refresh implements auth.IdentityProvider.
func (c *APIClient) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", auth.ErrUnauthenticated)
	}
	var s auth.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/refresh", "",
		auth.RefreshRequest{RefreshToken: refreshToken}, &s)
	if err != nil {
		return nil, err
	}
	if s.RefreshToken == "" {
		s.RefreshToken = refreshToken
	}
	return &s, nil
}

// Revoke implements auth.IdentityProvider.
func (c *APIClient) Revoke(ctx context.Context, s *auth.Session) error {
	if s == nil {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/api/auth/signout", s.AccessToken,
		auth.SignOutRequest{RefreshToken: s.RefreshToken}, nil)
}

// Get fetches path with the bearer token and decodes the JSON response into
// out. out may be nil.
func (c *APIClient) Get(ctx context.Context, path, token string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, token, nil, out)
}

func (c *APIClient) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", auth.ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if sentinel := auth.ErrorForStatus(resp.StatusCode); sentinel != nil {
		return fmt.Errorf("%w: %s %s returned %d%s", sentinel, method, path, resp.StatusCode, errorDetail(resp.Body))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("decode %s response: empty body", path)
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorDetail extracts the message from a rejection body, if any.
func errorDetail(r io.Reader) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil || body.Message == "" {
		return ""
	}
	return " (" + body.Message + ")"
}
