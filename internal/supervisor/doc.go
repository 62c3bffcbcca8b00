// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

/*
Package supervisor provides process supervision for the Ledgerline server
using suture v4.

# Overview

The supervisor tree organizes services into two layers for failure isolation:

	RootSupervisor ("ledgerline")
	├── BackgroundSupervisor ("background-layer")
	│   ├── RevocationSweeperService
	│   └── kv.GarbageCollector (if STORAGE_PATH is set)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crash in a background task never takes the API down, and a restarted HTTP
server does not reset the revocation list.

# Usage Example

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddBackgroundService(services.NewRevocationSweeperService(revocations, 5*time.Minute))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

# Logging

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog into the zerolog-backed slog bridge from
internal/logging.
*/
package supervisor
