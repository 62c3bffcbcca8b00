// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

// Package services adapts Ledgerline components to suture.Service so the
// supervisor tree can run, restart and stop them.
//
// Each wrapper translates a component's own lifecycle into the blocking,
// context-aware Serve(ctx) error contract and implements fmt.Stringer so
// supervisor events name the service.
package services
