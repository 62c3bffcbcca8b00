// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package cors

import (
	"net/http"

	"github.com/go-chi/cors"
)

// Fixed CORS response parameters.
var (
	AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	AllowedHeaders = []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
	ExposedHeaders = []string{"X-Request-ID"}
)

// PreflightMaxAge is the preflight cache lifetime in seconds.
const PreflightMaxAge = 86400

// Handler returns chi-compatible CORS middleware driven by v. The
// Access-Control-Allow-Origin header carries the request origin when v
// accepts it and is left out otherwise.
func Handler(v *Validator) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return v.IsAllowed(origin)
		},
		AllowedMethods:   AllowedMethods,
		AllowedHeaders:   AllowedHeaders,
		ExposedHeaders:   ExposedHeaders,
		AllowCredentials: true,
		MaxAge:           PreflightMaxAge,
	})
}
