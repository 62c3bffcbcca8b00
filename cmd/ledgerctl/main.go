// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

// Command ledgerctl signs in to a Ledgerline server and keeps the session
// fresh from the command line.
//
// Credentials and the last visited API path are cached in a BadgerDB
// directory (CLIENT_STATE_PATH, default $XDG_CONFIG_HOME/ledgerline/state).
// Every command resolves the cached session first, refreshing it once if
// the access token has expired.
//
// Examples:
//
//	ledgerctl login --username alice --password "$PASSWORD"
//	ledgerctl whoami
//	ledgerctl get /api/ledger/journal --role accountant
//	ledgerctl watch
//	ledgerctl logout
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
