// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/authz"
	"github.com/tomtom215/ledgerline/internal/client"
)

// PasswordEnvVar supplies the login password when --password is omitted.
const PasswordEnvVar = "LEDGERLINE_PASSWORD"

// ErrNotSignedIn is returned by commands that need a session.
var ErrNotSignedIn = errors.New("not signed in: run 'ledgerctl login'")

// ErrAccessDenied is returned when the route guard keeps a surface closed.
var ErrAccessDenied = errors.New("access denied")

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username and password",
		Long: `Sign in against the server's local identity provider and cache the session.

The password is read from --password or the LEDGERLINE_PASSWORD environment
variable.

Examples:
  ledgerctl login --username alice --password "$PASSWORD"
  LEDGERLINE_PASSWORD=secret ledgerctl login -u alice`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}
			if password == "" {
				password = os.Getenv(PasswordEnvVar)
			}
			if password == "" {
				return fmt.Errorf("--password or %s is required", PasswordEnvVar)
			}

			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			session, err := s.runtime.SignIn(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed in as %s\n", describe(session))
			fmt.Fprintf(out, "Continue at: %s\n", s.nav.RedirectTarget(cmd.Context()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (or "+PasswordEnvVar+")")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget cached credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.Current().IsAuthenticated() {
				// Drop whatever is cached, even if it no longer resolves.
				if err := s.creds.Delete(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}

			if err := s.runtime.SignOut(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: server-side revocation failed: %v\n", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			cur := s.Current()
			if !cur.IsAuthenticated() {
				fmt.Fprintln(out, "Not logged in.")
				fmt.Fprintln(out, "Use 'ledgerctl login' to authenticate.")
				return nil
			}

			fmt.Fprintf(out, "Subject: %s\n", cur.Identity.Subject)
			if cur.Identity.Name != "" {
				fmt.Fprintf(out, "Name:    %s\n", cur.Identity.Name)
			}
			if cur.Identity.Email != "" {
				fmt.Fprintf(out, "Email:   %s\n", cur.Identity.Email)
			}
			fmt.Fprintf(out, "Roles:   %s\n", rolesLabel(cur.Identity.Roles))
			if !cur.Expiry.IsZero() {
				fmt.Fprintf(out, "Expires: %s\n", cur.Expiry.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch an API path with the current session",
		Long: `Fetch an API path with the current session and print the JSON response.

With --role the path is treated as a guarded surface: the local role table is
checked first and the request is only sent when the session satisfies it.

Examples:
  ledgerctl get /api/ledger/summary
  ledgerctl get /api/ledger/journal --role accountant`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := checkSurface(cmd, s, client.Surface{Path: path, Required: authz.Role(role)}); err != nil {
				return err
			}

			var body interface{}
			if err := s.api.Get(cmd.Context(), path, s.Current().AccessToken, &body); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "role the surface requires (admin, accountant, user)")
	return cmd
}

// checkSurface mounts a route guard for surface and reports whether it
// renders. Without a required role it only records the visit.
func checkSurface(cmd *cobra.Command, s *cliSession, surface client.Surface) error {
	ctx := cmd.Context()
	if surface.Required == "" {
		return s.nav.Visit(ctx, surface.Path)
	}

	table := authz.MustDefaultTable()
	if !table.Known(surface.Required) {
		return fmt.Errorf("unknown role %q", surface.Required)
	}

	var target string
	guard := client.NewRouteGuard(s.runtime, table, s.nav, func(t string) { target = t }, surface)
	guard.Mount(ctx)
	defer guard.Unmount()

	if guard.Render() == client.Children {
		return nil
	}
	if target != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Redirect: %s\n", target)
	}
	if guard.State() == client.StateUnauthenticated {
		return ErrNotSignedIn
	}
	return fmt.Errorf("%w: %s requires role %s", ErrAccessDenied, surface.Path, surface.Required)
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session refreshed until interrupted",
		Long: `Keep the session alive, refreshing it on schedule and printing every change.
Refreshed credentials are cached, so other ledgerctl commands keep working.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.Current().IsAuthenticated() {
				return ErrNotSignedIn
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Refreshing every %s (Ctrl+C to stop)\n", s.runtime.Scheduler().Interval())

			ended := make(chan struct{})
			var endedOnce bool
			unsubscribe := s.runtime.Observe(func(session *auth.Session) {
				if !session.IsAuthenticated() {
					fmt.Fprintln(out, "Session ended.")
					if !endedOnce {
						endedOnce = true
						close(ended)
					}
					return
				}
				fmt.Fprintf(out, "%s session %s (expires %s)\n",
					time.Now().Format(time.TimeOnly), describe(session), session.Expiry.Local().Format(time.TimeOnly))
			})
			defer unsubscribe()

			select {
			case <-cmd.Context().Done():
				return nil
			case <-ended:
				return ErrNotSignedIn
			}
		},
	}
}

func describe(s *auth.Session) string {
	if !s.IsAuthenticated() {
		return "(absent)"
	}
	return fmt.Sprintf("%s [%s]", s.Identity.Subject, rolesLabel(s.Identity.Roles))
}

func rolesLabel(roles []string) string {
	if len(roles) == 0 {
		return "guest"
	}
	return strings.Join(roles, ", ")
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
