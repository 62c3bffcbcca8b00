// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshTotal counts scheduled refresh attempts.
	// Labels:
	//   - outcome: "success", "failure", "stale" (discarded after disarm or
	//     a concurrent replace), "skipped" (nothing to refresh)
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_refresh_total",
			Help: "Total number of scheduled session refresh attempts",
		},
		[]string{"outcome"},
	)

	// SchedulerArmedTotal counts scheduler arm operations.
	SchedulerArmedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_scheduler_arm_total",
			Help: "Total number of refresh scheduler arm operations",
		},
		[]string{"result"}, // armed, idle
	)
)
