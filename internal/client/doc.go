// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package client is the client side of the Ledgerline session lifecycle.

A Runtime owns one Store (the live session, swapped atomically as an
immutable snapshot) and one Scheduler (the proactive refresh timer). The
Scheduler is re-armed on every store change, so at most one refresh timer
exists per Runtime. Closing the Runtime disarms the timer synchronously:
no refresh call starts after Close returns.

RouteGuard gates a surface on the Runtime's session state through an
explicit Loading/Unauthenticated/Authenticated state machine and an
injected Redirector. Navigator remembers the last visited protected path
for redirect-after-sign-in, persisted in BadgerDB by ledgerctl.

APIClient speaks the /api/auth endpoints and implements
auth.IdentityProvider, so it can back a Runtime directly or through
auth.BreakerProvider.
*/
package client
