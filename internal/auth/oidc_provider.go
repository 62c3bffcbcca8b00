// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// OIDCProviderName is the provider label for OpenID Connect.
const OIDCProviderName = "oidc"

// OIDCConfig configures an OIDCProvider.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// RolesClaim names the ID token claim holding role labels.
	RolesClaim string

	// DefaultRoles are granted when the roles claim is absent or empty.
	DefaultRoles []string

	// HTTPClient is used for discovery, JWKS and token calls.
	HTTPClient *http.Client
}

// OIDCProvider resolves sessions from ID tokens issued by an external
// OpenID Connect provider.
type OIDCProvider struct {
	rp           rp.RelyingParty
	rolesClaim   string
	defaultRoles []string
}

// revokeEndpoint is implemented by relying parties that discovered a
// revocation endpoint.
type revokeEndpoint interface {
	GetRevokeEndpoint() string
}

// NewOIDCProvider performs discovery against cfg.IssuerURL. Discovery
// failures wrap ErrUnavailable.
func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("oidc provider: issuer URL and client ID are required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail}
	}
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	options := []rp.Option{
		rp.WithHTTPClient(cfg.HTTPClient),
	}
	if cfg.ClientSecret == "" {
		options = append(options, rp.WithPKCE(nil))
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx,
		cfg.IssuerURL,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.RedirectURL,
		cfg.Scopes,
		options...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: oidc discovery: %v", ErrUnavailable, err)
	}

	return &OIDCProvider{
		rp:           relyingParty,
		rolesClaim:   cfg.RolesClaim,
		defaultRoles: append([]string(nil), cfg.DefaultRoles...),
	}, nil
}

// Name implements IdentityProvider.
func (p *OIDCProvider) Name() string {
	return OIDCProviderName
}

// Resolve implements IdentityProvider. The credential is an ID token.
func (p *OIDCProvider) Resolve(ctx context.Context, token string) (s *Session, err error) {
	start := time.Now()
	defer func() { observeProvider(p.Name(), "resolve", start, err) }()

	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := rp.VerifyIDToken[*oidc.IDTokenClaims](ctx, token, p.rp.IDTokenVerifier())
	if err != nil {
		return nil, classifyOIDCError(ctx, "verify", err)
	}

	return &Session{
		Identity:    p.identityFrom(claims),
		AccessToken: token,
		Expiry:      claims.GetExpiration(),
	}, nil
}

// Refresh implements IdentityProvider. The renewed ID token becomes the
// session's access credential. A refresh token the issuer does not rotate
// is carried over.
func (p *OIDCProvider) Refresh(ctx context.Context, refreshToken string) (s *Session, err error) {
	start := time.Now()
	defer func() { observeProvider(p.Name(), "refresh", start, err) }()

	if refreshToken == "" {
		return nil, fmt.Errorf("%w: missing refresh token", ErrUnauthenticated)
	}

	tokens, err := rp.RefreshTokens[*oidc.IDTokenClaims](ctx, p.rp, refreshToken, "", "")
	if err != nil {
		return nil, classifyOIDCError(ctx, "refresh", err)
	}
	if tokens.IDToken == "" || tokens.IDTokenClaims == nil {
		return nil, fmt.Errorf("%w: refresh response carried no ID token", ErrUnauthenticated)
	}

	next := tokens.RefreshToken
	if next == "" {
		next = refreshToken
	}

	return &Session{
		Identity:     p.identityFrom(tokens.IDTokenClaims),
		AccessToken:  tokens.IDToken,
		RefreshToken: next,
		Expiry:       tokens.IDTokenClaims.GetExpiration(),
	}, nil
}

// Revoke implements IdentityProvider. Issuers without a revocation
// endpoint make this a no-op.
func (p *OIDCProvider) Revoke(ctx context.Context, s *Session) (err error) {
	start := time.Now()
	defer func() { observeProvider(p.Name(), "revoke", start, err) }()

	if s == nil || s.RefreshToken == "" {
		return nil
	}
	if re, ok := p.rp.(revokeEndpoint); !ok || re.GetRevokeEndpoint() == "" {
		logging.Ctx(ctx).Debug().Msg("Issuer has no revocation endpoint, skipping revoke")
		return nil
	}
	if err := rp.RevokeToken(ctx, p.rp, s.RefreshToken, "refresh_token"); err != nil {
		return classifyOIDCError(ctx, "revoke", err)
	}
	return nil
}

// identityFrom maps verified ID token claims to an identity.
func (p *OIDCProvider) identityFrom(claims *oidc.IDTokenClaims) *Identity {
	roles := stringSliceClaim(claims.Claims, p.rolesClaim)
	if len(roles) == 0 {
		roles = append([]string(nil), p.defaultRoles...)
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}

	return &Identity{
		Subject: claims.Subject,
		Name:    name,
		Email:   claims.Email,
		Roles:   normalizeRoles(roles),
	}
}

// stringSliceClaim reads a claim holding either a string or a list of strings.
func stringSliceClaim(claims map[string]any, name string) []string {
	if claims == nil || name == "" {
		return nil
	}
	switch v := claims[name].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// normalizeRoles returns a non-nil copy without blanks.
func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// classifyOIDCError maps relying party errors onto the taxonomy.
// Transport failures and server-side OAuth errors are ErrUnavailable;
// everything else means the credential was not accepted.
func classifyOIDCError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: oidc %s: %v", ErrUnavailable, op, err)
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("OIDC provider unreachable")
		return fmt.Errorf("%w: oidc %s: %v", ErrUnavailable, op, err)
	}

	var oidcErr *oidc.Error
	if errors.As(err, &oidcErr) {
		switch string(oidcErr.ErrorType) {
		case "server_error", "temporarily_unavailable":
			return fmt.Errorf("%w: oidc %s: %v", ErrUnavailable, op, err)
		}
		return fmt.Errorf("%w: oidc %s: %v", ErrUnauthenticated, op, err)
	}

	msg := err.Error()
	if strings.Contains(msg, "status not ok: 5") ||
		strings.Contains(msg, "Service Unavailable") ||
		strings.Contains(msg, "fetching keys") {
		return fmt.Errorf("%w: oidc %s: %v", ErrUnavailable, op, err)
	}

	logging.Ctx(ctx).Debug().Err(err).Str("operation", op).Msg("OIDC token rejected")
	return fmt.Errorf("%w: oidc %s: %v", ErrUnauthenticated, op, err)
}
