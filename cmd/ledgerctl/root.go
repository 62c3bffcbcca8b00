// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the ledgerctl command tree.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Command-line client for the Ledgerline ERP API",
		Long: `ledgerctl signs in to a Ledgerline server, caches the session locally and
refreshes it before the access token expires.

Configuration is read from config.yaml and the environment (LEDGERLINE_URL,
CLIENT_STATE_PATH, CLIENT_TOKEN_LIFETIME, CLIENT_REFRESH_RATIO); flags win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.baseURL, "url", "", "Ledgerline server URL (overrides LEDGERLINE_URL)")
	root.PersistentFlags().StringVar(&opts.statePath, "state", "", "directory for cached credentials (overrides CLIENT_STATE_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newGetCmd(opts),
		newWatchCmd(opts),
	)
	return root
}
