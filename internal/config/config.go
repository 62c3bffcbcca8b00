// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package config

import (
	"time"
)

// Environment names accepted in server.environment.
const (
	EnvProduction  = "production"
	EnvPreview     = "preview"
	EnvDevelopment = "development"
)

// Auth modes accepted in security.auth_mode.
const (
	AuthModeLocal = "local"
	AuthModeOIDC  = "oidc"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	CORS     CORSConfig     `koanf:"cors"`
	Storage  StorageConfig  `koanf:"storage"`
	Client   ClientConfig   `koanf:"client"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `koanf:"environment" validate:"oneof=production preview development"`
}

// SecurityConfig configures authentication.
type SecurityConfig struct {
	AuthMode   string `koanf:"auth_mode" validate:"oneof=local oidc"`
	CookieName string `koanf:"cookie_name" validate:"required"`

	Local   LocalAuthConfig `koanf:"local"`
	OIDC    OIDCConfig      `koanf:"oidc"`
	Breaker BreakerConfig   `koanf:"breaker"`

	// SignInRateLimit is the number of sign-in attempts per IP per window.
	// Zero disables the limiter.
	SignInRateLimit  int           `koanf:"signin_rate_limit" validate:"gte=0"`
	SignInRateWindow time.Duration `koanf:"signin_rate_window" validate:"gt=0"`

	RevocationSweepInterval time.Duration `koanf:"revocation_sweep_interval" validate:"gt=0"`
}

// LocalAuthConfig configures the built-in JWT identity provider.
type LocalAuthConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	Issuer          string        `koanf:"issuer" validate:"required"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl" validate:"gt=0"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl" validate:"gt=0"`

	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`

	Accounts []AccountConfig `koanf:"accounts" validate:"dive"`
}

// AccountConfig is a local account. Passwords are stored as bcrypt hashes.
type AccountConfig struct {
	Username     string   `koanf:"username" validate:"required"`
	PasswordHash string   `koanf:"password_hash" validate:"required"`
	Name         string   `koanf:"name"`
	Email        string   `koanf:"email" validate:"omitempty,email"`
	Roles        []string `koanf:"roles"`
}

// OIDCConfig configures the external OpenID Connect provider.
type OIDCConfig struct {
	IssuerURL    string        `koanf:"issuer_url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	RedirectURL  string        `koanf:"redirect_url"`
	Scopes       []string      `koanf:"scopes"`
	RolesClaim   string        `koanf:"roles_claim"`
	DefaultRoles []string      `koanf:"default_roles"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
}

// BreakerConfig configures the circuit breaker around identity provider calls.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gt=0"`
	MaxRequests      uint32        `koanf:"max_requests" validate:"gt=0"`
	Interval         time.Duration `koanf:"interval" validate:"gte=0"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

// CORSConfig configures the origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
	AppURL         string   `koanf:"app_url" validate:"omitempty,url"`
	PreviewSuffix  string   `koanf:"preview_suffix"`
}

// StorageConfig configures the embedded key-value store that holds
// revoked refresh tokens. An empty Path keeps revocations in memory.
type StorageConfig struct {
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval" validate:"gt=0"`
}

// Persistent reports whether revocations survive a restart.
func (c *StorageConfig) Persistent() bool {
	return c.Path != ""
}

// ClientConfig configures ledgerctl and other API clients.
type ClientConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"omitempty,url"`
	TokenLifetime time.Duration `koanf:"token_lifetime" validate:"gt=0"`
	RefreshRatio  float64       `koanf:"refresh_ratio" validate:"gt=0,lt=1"`
	StatePath     string        `koanf:"state_path"`
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// PreviewMode reports whether preview origins may be trusted.
func (c *Config) PreviewMode() bool {
	return c.Server.Environment == EnvPreview || c.Server.Environment == EnvDevelopment
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}

// AllAccounts returns the configured accounts plus the environment
// bootstrapped admin, if any.
func (c *LocalAuthConfig) AllAccounts() []AccountConfig {
	accounts := make([]AccountConfig, 0, len(c.Accounts)+1)
	accounts = append(accounts, c.Accounts...)
	if c.AdminUsername != "" && c.AdminPasswordHash != "" {
		accounts = append(accounts, AccountConfig{
			Username:     c.AdminUsername,
			PasswordHash: c.AdminPasswordHash,
			Name:         c.AdminUsername,
			Roles:        []string{"admin"},
		})
	}
	return accounts
}
