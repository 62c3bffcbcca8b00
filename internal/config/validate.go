// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinJWTSecretLength is the minimum accepted length of the local signing secret.
const MinJWTSecretLength = 32

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct-level constraints and the cross-field rules
// that depend on the selected auth mode.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	switch c.Security.AuthMode {
	case AuthModeLocal:
		if err := c.Security.Local.validate(); err != nil {
			return err
		}
	case AuthModeOIDC:
		if err := c.Security.OIDC.validate(); err != nil {
			return err
		}
	}

	if c.CORS.AppURL != "" {
		if u, err := url.Parse(c.CORS.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("cors.app_url must be an absolute origin, got %q", c.CORS.AppURL)
		}
	}

	return nil
}

func (c *LocalAuthConfig) validate() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("security.local.jwt_secret must be at least %d characters (set JWT_SECRET)", MinJWTSecretLength)
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("security.local.access_token_ttl (%s) must be shorter than refresh_token_ttl (%s)",
			c.AccessTokenTTL, c.RefreshTokenTTL)
	}
	if (c.AdminUsername == "") != (c.AdminPasswordHash == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD_HASH must be set together")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for _, a := range c.AllAccounts() {
		if _, dup := seen[a.Username]; dup {
			return fmt.Errorf("duplicate local account %q", a.Username)
		}
		seen[a.Username] = struct{}{}
	}
	return nil
}

func (c *OIDCConfig) validate() error {
	var missing []string
	if c.IssuerURL == "" {
		missing = append(missing, "OIDC_ISSUER_URL")
	}
	if c.ClientID == "" {
		missing = append(missing, "OIDC_CLIENT_ID")
	}
	if c.RedirectURL == "" {
		missing = append(missing, "OIDC_REDIRECT_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("auth_mode oidc requires %s", strings.Join(missing, ", "))
	}
	if c.RolesClaim == "" {
		return errors.New("security.oidc.roles_claim must not be empty")
	}
	return nil
}

// formatValidationErrors flattens validator errors into one readable error.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
