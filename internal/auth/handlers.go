// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ledgerline/internal/logging"
)

const maxRequestBody = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// SignInRequest is the body of POST /api/auth/signin.
type SignInRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=1024"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// SignOutRequest is the optional body of POST /api/auth/signout.
type SignOutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// HandlersConfig wires the auth endpoints.
type HandlersConfig struct {
	Provider IdentityProvider
	// Passwords enables POST /api/auth/signin. Nil in OIDC mode.
	Passwords PasswordAuthenticator
	Guard     *Guard
	Audit     *AuditLogger
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
}

// Handlers serves the /api/auth endpoints.
type Handlers struct {
	provider     IdentityProvider
	passwords    PasswordAuthenticator
	guard        *Guard
	audit        *AuditLogger
	secureCookie bool
}

// NewHandlers creates the auth endpoint handlers.
func NewHandlers(cfg HandlersConfig) *Handlers {
	if cfg.Audit == nil {
		cfg.Audit = NewAuditLogger()
	}
	return &Handlers{
		provider:     cfg.Provider,
		passwords:    cfg.Passwords,
		guard:        cfg.Guard,
		audit:        cfg.Audit,
		secureCookie: cfg.SecureCookie,
	}
}

// PasswordSignInEnabled reports whether SignIn should be routed.
func (h *Handlers) PasswordSignInEnabled() bool {
	return h.passwords != nil
}

// SignIn handles POST /api/auth/signin.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	if h.passwords == nil {
		http.NotFound(w, r)
		return
	}

	var req SignInRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	s, err := h.passwords.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.SignInFailed(r, req.Username, h.provider.Name(), reasonFor(err))
		RejectionFor(err).ServeHTTP(w, r)
		return
	}

	h.audit.SignInSucceeded(r, s, h.provider.Name())
	h.setSessionCookie(w, s)
	writeJSON(w, r, http.StatusOK, s)
}

// Refresh handles POST /api/auth/refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	s, err := h.provider.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.audit.RefreshFailed(r, h.provider.Name(), reasonFor(err))
		RejectionFor(fmt.Errorf("%w: %w", ErrRefreshFailed, err)).ServeHTTP(w, r)
		return
	}

	h.audit.Refreshed(r, s, h.provider.Name())
	h.setSessionCookie(w, s)
	writeJSON(w, r, http.StatusOK, s)
}

// SignOut handles POST /api/auth/signout. Revocation is best effort; the
// cookie is always cleared and the response is always 204.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	var req SignOutRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeBadRequest(w, err)
			return
		}
	}

	held := &Session{
		AccessToken:  h.guard.Credential(r),
		RefreshToken: req.RefreshToken,
	}

	var revokeErr error
	if held.AccessToken != "" || held.RefreshToken != "" {
		revokeErr = h.provider.Revoke(r.Context(), held)
		if revokeErr != nil {
			logging.Ctx(r.Context()).Warn().Err(revokeErr).Msg("Sign-out revocation failed")
		}
	}

	h.audit.SignedOut(r, h.provider.Name(), revokeErr)
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	s, err := h.guard.RequireSession(r)
	if err != nil {
		RejectionFor(err).ServeHTTP(w, r)
		return
	}
	writeJSON(w, r, http.StatusOK, s.Public())
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.guard.CookieName(),
		Value:    s.AccessToken,
		Path:     "/",
		Expires:  s.Expiry,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.guard.CookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeBody reads a bounded JSON body into v and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed %q validation", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	//nolint:errcheck // response already committed
	json.NewEncoder(w).Encode(rejectionBody{Error: "bad_request", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func reasonFor(err error) string {
	switch {
	case isUnavailable(err):
		return "provider unavailable"
	case errors.Is(err, ErrUnauthenticated):
		return "invalid credentials"
	default:
		return "error"
	}
}
