// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// LocalProviderName is the provider label for local accounts.
const LocalProviderName = "local"

// Account is a local user that can sign in with a password.
type Account struct {
	Username     string
	PasswordHash string
	Name         string
	Email        string
	Roles        []string
}

// LocalConfig configures a LocalProvider.
type LocalConfig struct {
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Accounts        []Account
	Revocations     RevocationList
}

// tokenClaims are the JWT claims of both token types.
type tokenClaims struct {
	Type  string   `json:"typ"`
	Name  string   `json:"name,omitempty"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// LocalProvider authenticates configured accounts and issues HS256 JWTs.
type LocalProvider struct {
	secret      []byte
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	revocations RevocationList
	parser      *jwt.Parser

	mu       sync.RWMutex
	accounts map[string]Account

	// dummyHash equalizes sign-in timing for unknown usernames.
	dummyHash []byte

	now func() time.Time
}

// NewLocalProvider creates a provider for cfg.Accounts.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("local provider: secret must be at least 32 bytes")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("local provider: token TTLs must be positive")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "ledgerline"
	}
	if cfg.Revocations == nil {
		cfg.Revocations = NewMemoryRevocationList()
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("local provider: generate dummy hash: %w", err)
	}

	p := &LocalProvider{
		secret:      cfg.Secret,
		issuer:      cfg.Issuer,
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		revocations: cfg.Revocations,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
		accounts:  make(map[string]Account, len(cfg.Accounts)),
		dummyHash: dummy,
		now:       time.Now,
	}
	for _, a := range cfg.Accounts {
		if a.Username == "" {
			return nil, errors.New("local provider: account with empty username")
		}
		if _, dup := p.accounts[a.Username]; dup {
			return nil, fmt.Errorf("local provider: duplicate account %q", a.Username)
		}
		p.accounts[a.Username] = a
	}
	return p, nil
}

// Name implements IdentityProvider.
func (p *LocalProvider) Name() string {
	return LocalProviderName
}

// Revocations returns the list backing this provider.
func (p *LocalProvider) Revocations() RevocationList {
	return p.revocations
}

func (p *LocalProvider) account(username string) (Account, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.accounts[username]
	return a, ok
}

// SignIn verifies the password and issues a fresh session.
func (p *LocalProvider) SignIn(ctx context.Context, username, password string) (s *Session, err error) {
	start := time.Now()
	defer func() {
		observeProvider(p.Name(), "signin", start, err)
		if err != nil {
			SignInAttemptsTotal.WithLabelValues("failure").Inc()
		} else {
			SignInAttemptsTotal.WithLabelValues("success").Inc()
		}
	}()

	acct, ok := p.account(username)
	hash := p.dummyHash
	if ok {
		hash = []byte(acct.PasswordHash)
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password)); cmpErr != nil || !ok {
		return nil, fmt.Errorf("%w: invalid username or password", ErrUnauthenticated)
	}

	return p.issue(acct)
}

// Resolve implements IdentityProvider.
func (p *LocalProvider) Resolve(ctx context.Context, token string) (s *Session, err error) {
	start := time.Now()
	defer func() { observeProvider(p.Name(), "resolve", start, err) }()

	claims, err := p.verify(ctx, token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity: &Identity{
			Subject: claims.Subject,
			Name:    claims.Name,
			Email:   claims.Email,
			Roles:   normalizeRoles(claims.Roles),
		},
		AccessToken: token,
		Expiry:      claims.ExpiresAt.Time,
	}, nil
}

// Refresh implements IdentityProvider. The presented refresh token is
// revoked; presenting it again fails.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (s *Session, err error) {
	start := time.Now()
	defer func() { observeProvider(p.Name(), "refresh", start, err) }()

	claims, err := p.verify(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	acct, ok := p.account(claims.Subject)
	if !ok {
		return nil, fmt.Errorf("%w: account %q no longer exists", ErrUnauthenticated, claims.Subject)
	}

	first, err := p.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: revoke rotated token: %v", ErrUnavailable, err)
	}
	if !first {
		logging.Ctx(ctx).Warn().
			Str("subject", claims.Subject).
			Str("jti", claims.ID).
			Msg("Refresh token reuse detected")
		return nil, fmt.Errorf("%w: refresh token already used", ErrUnauthenticated)
	}

	return p.issue(acct)
}

// Revoke implements IdentityProvider. Tokens that fail to parse are
// skipped; they cannot authenticate anyway.
func (p *LocalProvider) Revoke(ctx context.Context, s *Session) (err error) {
	start := time.Now()
	defer func() { observeProvider(p.Name(), "revoke", start, err) }()

	if s == nil {
		return nil
	}
	for _, raw := range []string{s.AccessToken, s.RefreshToken} {
		if raw == "" {
			continue
		}
		claims, perr := p.parseUnverifiedExpiry(raw)
		if perr != nil {
			continue
		}
		if _, rerr := p.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); rerr != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, rerr)
		}
	}
	return nil
}

// verify checks signature, issuer, expiry, type and revocation.
func (p *LocalProvider) verify(ctx context.Context, raw, wantType string) (*tokenClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims := &tokenClaims{}
	token, err := p.parser.ParseWithClaims(raw, claims, p.keyFunc)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Type != wantType {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrUnauthenticated, wantType, claims.Type)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: token missing sub or jti", ErrUnauthenticated)
	}

	revoked, err := p.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: revocation lookup: %v", ErrUnavailable, err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
	}
	return claims, nil
}

// parseUnverifiedExpiry verifies the signature but accepts expired tokens,
// so sign-out can revoke whatever the client holds.
func (p *LocalProvider) parseUnverifiedExpiry(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(raw, claims, p.keyFunc); err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, errors.New("token missing jti or exp")
	}
	return claims, nil
}

func (p *LocalProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return p.secret, nil
}

// issue mints an access/refresh pair for acct.
func (p *LocalProvider) issue(acct Account) (*Session, error) {
	now := p.now()
	roles := make([]string, len(acct.Roles))
	copy(roles, acct.Roles)
	identity := &Identity{
		Subject: acct.Username,
		Name:    acct.Name,
		Email:   acct.Email,
		Roles:   roles,
	}

	access, accessExp, err := p.sign(identity, TokenTypeAccess, now, p.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := p.sign(identity, TokenTypeRefresh, now, p.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity:     identity,
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       accessExp,
	}, nil
}

func (p *LocalProvider) sign(id *Identity, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := tokenClaims{
		Type:  typ,
		Name:  id.Name,
		Email: id.Email,
		Roles: id.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    p.issuer,
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, exp, nil
}
