// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ledgerline/internal/auth"
)

// BreakerStater exposes the identity provider circuit breaker state.
type BreakerStater interface {
	State() gobreaker.State
}

// readinessTimeout bounds the revocation store probe.
const readinessTimeout = 2 * time.Second

type handlers struct {
	guard       *auth.Guard
	revocations auth.RevocationList
	breaker     BreakerStater
	startTime   time.Time
}

// healthLive reports that the process is serving.
func (h *handlers) healthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// healthReady reports whether sessions can be resolved: the identity
// provider breaker is not open and the revocation store answers.
func (h *handlers) healthReady(w http.ResponseWriter, r *http.Request) {
	providerReady := h.breaker == nil || h.breaker.State() != gobreaker.StateOpen

	revocationsReady := true
	revoked := 0
	if h.revocations != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		n, err := h.revocations.Len(ctx)
		cancel()
		revocationsReady = err == nil
		revoked = n
	}

	ready := providerReady && revocationsReady
	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	respondJSON(w, r, code, &Response{
		Status: status,
		Data: map[string]interface{}{
			"identity_provider_ready": providerReady,
			"revocation_store_ready":  revocationsReady,
			"revoked_tokens":          revoked,
			"ready_to_serve":          ready,
			"uptime":                  time.Since(h.startTime).Seconds(),
		},
	})
}

// ledgerSummary serves GET /api/ledger/summary.
func (h *handlers) ledgerSummary(w http.ResponseWriter, r *http.Request) {
	respondSurface(w, r, "ledger.summary")
}

// ledgerJournal serves GET /api/ledger/journal.
func (h *handlers) ledgerJournal(w http.ResponseWriter, r *http.Request) {
	respondSurface(w, r, "ledger.journal")
}

// adminUsers serves GET /api/admin/users.
func (h *handlers) adminUsers(w http.ResponseWriter, r *http.Request) {
	if rej := h.guard.RequireAdmin(r); rej != nil {
		rej.ServeHTTP(w, r)
		return
	}
	respondSurface(w, r, "admin.users")
}

func respondSurface(w http.ResponseWriter, r *http.Request, surface string) {
	data := map[string]interface{}{"surface": surface}
	if s := auth.SessionFromContext(r.Context()); s.IsAuthenticated() {
		data["subject"] = s.Subject()
		data["roles"] = s.Roles()
	}
	respondData(w, r, data)
}
