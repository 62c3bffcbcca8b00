// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// SecurityEvent is an auditable authentication event.
type SecurityEvent struct {
	Event    string
	Subject  string
	Username string
	Provider string
	IP       string
	Success  bool
	Reason   string
}

// AuditLogger writes security events to the structured log under the
// "auth-audit" component. Credentials are never logged.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger creates an audit logger on the global logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{logger: logging.WithComponent("auth-audit")}
}

// NewAuditLoggerWithLogger creates an audit logger on logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditLoggerWithLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With().Str("component", "auth-audit").Logger()}
}

// Log writes event.
func (l *AuditLogger) Log(r *http.Request, event *SecurityEvent) {
	e := l.logger.Info()
	if !event.Success {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event).Bool("success", event.Success)

	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		e = e.Str("request_id", id)
	}
	if event.Subject != "" {
		e = e.Str("subject", event.Subject)
	}
	if event.Username != "" {
		e = e.Str("username", sanitizeUsername(event.Username))
	}
	if event.Provider != "" {
		e = e.Str("provider", event.Provider)
	}
	if ip := event.IP; ip != "" {
		e = e.Str("ip", ip)
	} else {
		e = e.Str("ip", clientIP(r))
	}
	if event.Reason != "" && !event.Success {
		e = e.Str("reason", event.Reason)
	}
	e.Msg("")
}

// SignInSucceeded records a successful sign-in.
func (l *AuditLogger) SignInSucceeded(r *http.Request, s *Session, provider string) {
	l.Log(r, &SecurityEvent{Event: "signin_success", Subject: s.Subject(), Provider: provider, Success: true})
}

// SignInFailed records a rejected sign-in.
func (l *AuditLogger) SignInFailed(r *http.Request, username, provider, reason string) {
	l.Log(r, &SecurityEvent{Event: "signin_failed", Username: username, Provider: provider, Reason: reason})
}

// Refreshed records a credential renewal.
func (l *AuditLogger) Refreshed(r *http.Request, s *Session, provider string) {
	l.Log(r, &SecurityEvent{Event: "token_refresh", Subject: s.Subject(), Provider: provider, Success: true})
}

// RefreshFailed records a rejected renewal.
func (l *AuditLogger) RefreshFailed(r *http.Request, provider, reason string) {
	l.Log(r, &SecurityEvent{Event: "token_refresh_failed", Provider: provider, Reason: reason})
}

// SignedOut records a sign-out. revokeErr is the best-effort revocation result.
func (l *AuditLogger) SignedOut(r *http.Request, provider string, revokeErr error) {
	ev := &SecurityEvent{Event: "signout", Provider: provider, Success: revokeErr == nil}
	if revokeErr != nil {
		ev.Reason = "revoke failed"
	}
	l.Log(r, ev)
}

// sanitizeUsername bounds length and strips control characters from
// attacker-supplied usernames.
func sanitizeUsername(s string) string {
	const maxLen = 64
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP
// middleware rewrites from forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
