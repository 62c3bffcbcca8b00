// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAllow   = "allow"
	outcomeDeny    = "deny"
	outcomeUnknown = "unknown_role"
	outcomeError   = "error"
)

// DecisionsTotal counts role policy evaluations.
var DecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authz_decisions_total",
		Help: "Total number of role policy decisions",
	},
	[]string{"required", "outcome"},
)

func outcomeFor(allowed bool) string {
	if allowed {
		return outcomeAllow
	}
	return outcomeDeny
}

func recordDecision(required Role, outcome string) {
	// Unregistered roles share one label.
	label := string(required)
	if outcome == outcomeUnknown {
		label = "unregistered"
	}
	DecisionsTotal.WithLabelValues(label, outcome).Inc()
}
