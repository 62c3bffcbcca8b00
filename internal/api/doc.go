// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package api assembles the Ledgerline HTTP surface on a chi router.

Global middleware, outermost first:

 1. middleware.RequestID: request and correlation IDs in the logging context
 2. chi RealIP and Recoverer
 3. middleware.PrometheusMetrics: request counts, latency and in-flight gauge
 4. cors.Handler: origin allow-list from the Origin Validator
 5. SecurityHeaders: nosniff, frame denial, referrer policy, HSTS over TLS

Route groups:

	/api/auth/signin      POST  password sign-in (local mode, rate limited per IP)
	/api/auth/refresh     POST  refresh token exchange
	/api/auth/signout     POST  revoke and clear the session cookie
	/api/auth/session     GET   current identity
	/api/ledger/summary   GET   role user
	/api/ledger/journal   GET   role accountant
	/api/admin/users      GET   admin only
	/api/health/live      GET   liveness
	/api/health/ready     GET   readiness (identity provider breaker, revocation store)
	/metrics              GET   Prometheus exposition

The ledger and admin handlers return placeholder bodies that identify the
caller; they exist so role enforcement can be exercised end to end.
*/
package api
