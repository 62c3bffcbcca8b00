// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package logging is the process-wide zerolog setup for Ledgerline.

Every package logs through the helpers here instead of creating its own
logger, so level, format and context fields stay consistent:

	logging.Init(logging.Config{Level: "info", Format: "json"})

	logging.Info().Str("mode", "local").Msg("Identity provider ready")
	logging.Ctx(r.Context()).Warn().Err(err).Msg("Session resolution failed")

Ctx attaches the request_id and correlation_id stored by the request ID
middleware. Auth-sensitive values (tokens, passwords) are never logged; log
the subject identifier instead.

The slog bridge (NewSlogLogger) exists for libraries that only accept a
*slog.Logger, such as sutureslog.
*/
package logging
