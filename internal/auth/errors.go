// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
)

// Error taxonomy. Classify with errors.Is; wrapped errors keep their class.
var (
	// ErrUnauthenticated means no valid identity is present.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means an identity is present but its roles do not satisfy
	// the requirement.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable means the identity provider could not be reached.
	ErrUnavailable = errors.New("identity provider unavailable")

	// ErrRefreshFailed means a credential renewal attempt failed. It is
	// reported and the caller retries at the next interval.
	ErrRefreshFailed = errors.New("credential refresh failed")
)

// Rejection codes used in JSON error bodies.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeUnavailable     = "unavailable"
)

// Rejection is a guard decision that stops a request. It is both an error
// and an http.Handler that writes the rejection response.
type Rejection struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements error.
func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Code + ": " + r.Err.Error()
	}
	return r.Code
}

// Unwrap returns the underlying error.
func (r *Rejection) Unwrap() error {
	return r.Err
}

type rejectionBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ServeHTTP writes the rejection as JSON. The underlying error is never
// exposed to the client.
func (r *Rejection) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	switch r.Status {
	case http.StatusUnauthorized:
		h.Set("WWW-Authenticate", `Bearer realm="ledgerline"`)
	case http.StatusServiceUnavailable:
		h.Set("Retry-After", "5")
	}
	w.WriteHeader(r.Status)
	//nolint:errcheck // response already committed
	json.NewEncoder(w).Encode(rejectionBody{Error: r.Code, Message: r.Message})
}

// RejectionFor maps err to a rejection. A nil error yields nil.
// Errors outside the taxonomy fail closed to 401.
func RejectionFor(err error) *Rejection {
	if err == nil {
		return nil
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}
	switch {
	case errors.Is(err, ErrForbidden):
		return &Rejection{Status: http.StatusForbidden, Code: CodeForbidden,
			Message: "insufficient role for this resource", Err: err}
	case errors.Is(err, ErrUnavailable):
		return &Rejection{Status: http.StatusServiceUnavailable, Code: CodeUnavailable,
			Message: "identity provider unavailable, try again later", Err: err}
	default:
		return &Rejection{Status: http.StatusUnauthorized, Code: CodeUnauthenticated,
			Message: "authentication required", Err: err}
	}
}

// ErrorForStatus maps an HTTP status received from a Ledgerline server back
// to the taxonomy. It returns nil for non-error statuses.
func ErrorForStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthenticated
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway,
		status == http.StatusGatewayTimeout, status == http.StatusTooManyRequests:
		return ErrUnavailable
	default:
		return ErrUnauthenticated
	}
}
