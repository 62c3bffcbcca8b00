// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package main is the entry point for the Ledgerline API server.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("ledgerline")
	├── BackgroundSupervisor ("background-layer")
	│   ├── Revocation sweeper (local auth mode)
	│   └── Key-value store GC (STORAGE_PATH set)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment variables
 2. Logging: zerolog with JSON/console output modes
 3. Role policy table: casbin model over the built-in role rows
 4. Revocation store: BadgerDB when STORAGE_PATH is set, memory otherwise
 5. Identity provider: local JWT or OIDC, behind a circuit breaker
 6. Request guard, auth handlers and origin validator
 7. Supervisor tree and HTTP server

# Configuration

Local mode (default):

	export JWT_SECRET=$(openssl rand -base64 32)
	export ADMIN_USERNAME=admin
	export ADMIN_PASSWORD_HASH='$2a$10$...'
	export CORS_ORIGINS=https://erp.example.com
	export STORAGE_PATH=/var/lib/ledgerline
	./ledgerline

OIDC mode:

	export AUTH_MODE=oidc
	export OIDC_ISSUER_URL=https://id.example.com
	export OIDC_CLIENT_ID=ledgerline
	export OIDC_REDIRECT_URL=https://erp.example.com/auth/callback
	./ledgerline

Preview deployments set ENVIRONMENT=preview to trust *.vercel.app origins.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests within SHUTDOWN_TIMEOUT, background services stop, and
the key-value store is closed last.
*/
package main
