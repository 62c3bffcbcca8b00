// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package config loads Ledgerline configuration with Koanf v2.

Sources are layered, highest priority last:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file (CONFIG_PATH, config.yaml, /etc/ledgerline/config.yaml)
 3. Environment variables, through an explicit name mapping

Only mapped environment variables are read, so unrelated variables cannot
leak into the configuration. Comma-separated values are split for slice
fields (CORS_ORIGINS, OIDC_SCOPES, ...).

Local accounts can only be declared in the YAML file; the environment can
bootstrap a single admin through ADMIN_USERNAME and ADMIN_PASSWORD_HASH.

Example config.yaml:

	server:
	  port: 8080
	  environment: production
	security:
	  auth_mode: local
	  local:
	    jwt_secret: "change-me-to-at-least-32-characters!!"
	    accounts:
	      - username: alice
	        password_hash: "$2a$10$..."
	        roles: [accountant]
	cors:
	  allowed_origins: [https://erp.example.com]
	storage:
	  path: /var/lib/ledgerline
*/
package config
