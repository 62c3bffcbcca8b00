// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"time"
)

// Identity is an authenticated principal.
// An identity with zero roles is a guest.
type Identity struct {
	Subject string   `json:"subject"`
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles"`
}

// IsGuest reports whether the identity holds no roles.
func (i *Identity) IsGuest() bool {
	return i == nil || len(i.Roles) == 0
}

// Clone returns a deep copy.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	if i.Roles != nil {
		out.Roles = make([]string, len(i.Roles))
		copy(out.Roles, i.Roles)
	}
	return &out
}

// Session pairs an identity with the credentials that prove it.
//
// A nil Identity means the session is absent: no one is signed in. Token
// fields carry no meaning for authentication state; callers must check
// IsAuthenticated.
type Session struct {
	Identity     *Identity `json:"identity"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Absent returns a session with no identity.
func Absent() *Session {
	return &Session{}
}

// IsAuthenticated reports whether an identity is present.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Identity != nil
}

// Roles returns the identity's roles, or nil when absent.
func (s *Session) Roles() []string {
	if !s.IsAuthenticated() {
		return nil
	}
	return s.Identity.Roles
}

// Subject returns the identity subject, or "" when absent.
func (s *Session) Subject() string {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.Identity.Subject
}

// CanRefresh reports whether the session carries a refresh token for a
// present identity.
func (s *Session) CanRefresh() bool {
	return s.IsAuthenticated() && s.RefreshToken != ""
}

// Expired reports whether the access credential has expired at now.
// A zero Expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.Expiry.IsZero() {
		return false
	}
	return !now.Before(s.Expiry)
}

// Clone returns a deep copy. Cloning nil yields an absent session.
func (s *Session) Clone() *Session {
	if s == nil {
		return Absent()
	}
	out := *s
	out.Identity = s.Identity.Clone()
	return &out
}

// Public returns a copy without credentials.
func (s *Session) Public() *Session {
	out := s.Clone()
	out.AccessToken = ""
	out.RefreshToken = ""
	return out
}
