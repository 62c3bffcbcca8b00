// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tomtom215/ledgerline/internal/config"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// Providers is the identity provider stack built from configuration.
type Providers struct {
	// Identity is the breaker-wrapped provider used by the guard.
	Identity IdentityProvider
	// Passwords is set in local mode only.
	Passwords PasswordAuthenticator
	// Revocations is set in local mode only.
	Revocations RevocationList
}

// NewProvidersFromConfig builds the provider for cfg.Security.AuthMode.
// revocations may be nil, in which case local mode keeps them in memory.
func NewProvidersFromConfig(ctx context.Context, cfg *config.SecurityConfig, revocations RevocationList) (*Providers, error) {
	var (
		inner IdentityProvider
		out   = &Providers{}
	)

	switch cfg.AuthMode {
	case config.AuthModeLocal:
		if revocations == nil {
			revocations = NewMemoryRevocationList()
		}
		accounts := make([]Account, 0, len(cfg.Local.Accounts)+1)
		for _, a := range cfg.Local.AllAccounts() {
			accounts = append(accounts, Account{
				Username:     a.Username,
				PasswordHash: a.PasswordHash,
				Name:         a.Name,
				Email:        a.Email,
				Roles:        a.Roles,
			})
		}
		local, err := NewLocalProvider(LocalConfig{
			Secret:          []byte(cfg.Local.JWTSecret),
			Issuer:          cfg.Local.Issuer,
			AccessTokenTTL:  cfg.Local.AccessTokenTTL,
			RefreshTokenTTL: cfg.Local.RefreshTokenTTL,
			Accounts:        accounts,
			Revocations:     revocations,
		})
		if err != nil {
			return nil, err
		}
		inner = local
		out.Revocations = revocations
		logging.Info().Int("accounts", len(accounts)).Msg("Local identity provider configured")

	case config.AuthModeOIDC:
		oidcProvider, err := NewOIDCProvider(ctx, OIDCConfig{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
			Scopes:       cfg.OIDC.Scopes,
			RolesClaim:   cfg.OIDC.RolesClaim,
			DefaultRoles: cfg.OIDC.DefaultRoles,
			HTTPClient:   &http.Client{Timeout: cfg.OIDC.Timeout},
		})
		if err != nil {
			return nil, err
		}
		inner = oidcProvider
		logging.Info().Str("issuer", cfg.OIDC.IssuerURL).Msg("OIDC identity provider configured")

	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}

	breaker := NewBreakerProvider(inner, BreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.OpenTimeout,
	})
	out.Identity = breaker
	if _, ok := inner.(PasswordAuthenticator); ok {
		out.Passwords = breaker
	}
	return out, nil
}
