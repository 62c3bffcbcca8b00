// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardDecisionsTotal counts request guard decisions.
	// Labels:
	//   - check: "session" or "role:<name>"
	//   - outcome: "allow", "unauthenticated", "forbidden", "unavailable"
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_guard_decisions_total",
			Help: "Total number of request guard decisions",
		},
		[]string{"check", "outcome"},
	)

	// ProviderRequestsTotal counts identity provider operations.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_provider_requests_total",
			Help: "Total number of identity provider operations",
		},
		[]string{"provider", "operation", "outcome"},
	)

	// ProviderDuration measures identity provider latency.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_provider_duration_seconds",
			Help:    "Duration of identity provider operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"provider", "operation"},
	)

	// SignInAttemptsTotal counts password sign-in attempts.
	SignInAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_signin_attempts_total",
			Help: "Total number of password sign-in attempts",
		},
		[]string{"outcome"},
	)

	// RevocationOperationsTotal counts revocation list operations.
	RevocationOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_revocation_operations_total",
			Help: "Total number of token revocation list operations",
		},
		[]string{"operation", "outcome"},
	)

	// RevocationListSize tracks the number of revoked token IDs held.
	RevocationListSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_revocation_list_size",
			Help: "Current number of revoked token IDs tracked",
		},
	)

	// RevocationSweptTotal counts expired revocations removed by sweeps.
	RevocationSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_revocation_swept_total",
			Help: "Total number of expired revocations removed",
		},
	)

	// BreakerState reports the identity provider circuit breaker state
	// (0 = closed, 1 = half-open, 2 = open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auth_provider_breaker_state",
			Help: "Identity provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)
)

// outcomeLabel classifies err for provider metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case isUnavailable(err):
		return "unavailable"
	default:
		return "rejected"
	}
}

// observeProvider records one provider operation.
func observeProvider(provider, operation string, start time.Time, err error) {
	ProviderDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	ProviderRequestsTotal.WithLabelValues(provider, operation, outcomeLabel(err)).Inc()
}
