// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

// Package kv opens the embedded BadgerDB stores Ledgerline keeps on disk and
// runs their value log garbage collection.
//
// The server uses a store for the token revocation list so revocations
// survive restarts. The ledgerctl client uses one for its cached credentials
// and the last visited path.
//
// An empty Path opens an in-memory database, which is what tests and
// ephemeral deployments use:
//
//	db, err := kv.Open(kv.Config{Path: "/var/lib/ledgerline/state"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// GarbageCollector implements suture.Service and should be added to the
// background layer of the supervisor tree.
package kv
