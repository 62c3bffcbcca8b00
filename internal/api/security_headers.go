// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig defines rate limit parameters for an endpoint.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether the limiter should be installed.
func (c RateLimitConfig) Enabled() bool {
	return c.Requests > 0 && c.Window > 0
}

var (
	// RateLimitSignIn guards password sign-in against brute force.
	RateLimitSignIn = RateLimitConfig{Requests: 5, Window: 5 * time.Minute}

	// RateLimitHealth keeps probes cheap without leaving them open.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
)

// RateLimitByIP returns an httprate limiter keyed by client IP. A disabled
// config yields a pass-through middleware.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests")
		}),
	)
}

// SecurityHeaders adds the API response hardening headers. HSTS is only
// sent when the request arrived over TLS, directly or through a
// TLS-terminating proxy.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
