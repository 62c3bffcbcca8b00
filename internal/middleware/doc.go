// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package middleware provides the infrastructure HTTP middleware of the
Ledgerline API: request ID propagation and Prometheus instrumentation.

Authentication and authorization middleware live in internal/auth; CORS
response shaping lives in internal/cors.

Middleware Stack:

The router in cmd/server stacks them in this order:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)          // Layer 1: request tracking
	r.Use(middleware.PrometheusMetrics)  // Layer 2: metrics
	r.Use(cors.Handler(validator))       // Layer 3: CORS headers
	r.With(guard.Authenticated).Get(...) // Layer 4: auth, per route

Request ID:

Each request gets an X-Request-ID (taken from an upstream proxy when
present, otherwise a new UUID). The ID is echoed in the response and added
to the request context so logging.Ctx includes it in every log line.

Prometheus Metrics:

Requests are counted and timed by method, chi route pattern and status. The
route pattern keeps label cardinality bounded: /api/ledger/{id} is one series
no matter how many IDs are requested.

Metrics exposed:

  - http_requests_total{method, route, status}
  - http_request_duration_seconds{method, route}
  - http_requests_in_flight
*/
package middleware
