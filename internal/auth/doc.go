// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package auth owns the server side of the Ledgerline session lifecycle.

It defines the identity and session model shared with clients, the error
taxonomy (unauthenticated, forbidden, unavailable, refresh failed) and its
HTTP mapping, the identity providers that resolve credentials into
sessions, and the request Guard that every protected handler calls before
doing any work.

# Providers

Two IdentityProvider implementations exist:

  - LocalProvider issues HS256 access/refresh JWTs for accounts declared in
    configuration (bcrypt password hashes). Refresh rotates the refresh
    token; revoked token IDs are kept in a RevocationList.
  - OIDCProvider verifies ID tokens from an external OpenID Connect issuer
    through the zitadel relying party and maps a configurable roles claim.

Either can be wrapped in a BreakerProvider so an unreachable identity
provider fails fast with ErrUnavailable instead of stalling every request.

# Guard

Guard extracts the credential (Authorization: Bearer first, then the
session cookie), resolves it, and checks roles through the authz table:

	if rej := guard.RequireAdmin(r); rej != nil {
		rej.ServeHTTP(w, r)
		return
	}

An unauthenticated request always yields 401 before any role is checked.
Resolution failures are never retried within a request.
*/
package auth
