// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/authz"
	"github.com/tomtom215/ledgerline/internal/cors"
	"github.com/tomtom215/ledgerline/internal/middleware"
)

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Guard   *auth.Guard
	Auth    *auth.Handlers
	Origins *cors.Validator

	// SignInLimit throttles POST /api/auth/signin per client IP.
	SignInLimit RateLimitConfig

	// Revocations and Breaker feed the readiness probe. Both are optional.
	Revocations auth.RevocationList
	Breaker     BreakerStater
}

// NewRouter builds the chi router for the Ledgerline API.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &handlers{
		guard:       cfg.Guard,
		revocations: cfg.Revocations,
		breaker:     cfg.Breaker,
		startTime:   time.Now(),
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(cors.Handler(cfg.Origins))
	r.Use(SecurityHeaders)

	r.Route("/api/auth", func(r chi.Router) {
		if cfg.Auth.PasswordSignInEnabled() {
			r.With(RateLimitByIP(cfg.SignInLimit)).Post("/signin", cfg.Auth.SignIn)
		}
		r.Post("/refresh", cfg.Auth.Refresh)
		r.Post("/signout", cfg.Auth.SignOut)
		r.Get("/session", cfg.Auth.Session)
	})

	r.Route("/api/ledger", func(r chi.Router) {
		r.With(cfg.Guard.RequireRoleMiddleware(authz.RoleUser)).Get("/summary", h.ledgerSummary)
		r.With(cfg.Guard.RequireRoleMiddleware(authz.RoleAccountant)).Get("/journal", h.ledgerJournal)
	})

	r.Get("/api/admin/users", h.adminUsers)

	r.Route("/api/health", func(r chi.Router) {
		r.Use(RateLimitByIP(RateLimitHealth))
		r.Get("/live", h.healthLive)
		r.Get("/ready", h.healthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "not_found", "Resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	return r
}
