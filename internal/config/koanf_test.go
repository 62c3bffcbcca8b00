// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Environment != EnvProduction {
		t.Errorf("Server.Environment = %q, want production", cfg.Server.Environment)
	}
	if cfg.Security.AuthMode != AuthModeLocal {
		t.Errorf("Security.AuthMode = %q, want local", cfg.Security.AuthMode)
	}
	if cfg.Security.OIDC.RolesClaim != "roles" {
		t.Errorf("OIDC.RolesClaim = %q, want roles", cfg.Security.OIDC.RolesClaim)
	}
	if cfg.Client.RefreshRatio != DefaultRefreshRatio {
		t.Errorf("Client.RefreshRatio = %v, want %v", cfg.Client.RefreshRatio, DefaultRefreshRatio)
	}
	if cfg.CORS.PreviewSuffix != ".vercel.app" {
		t.Errorf("CORS.PreviewSuffix = %q", cfg.CORS.PreviewSuffix)
	}
	if cfg.PreviewMode() {
		t.Error("production defaults must not enable preview mode")
	}
	if cfg.Storage.Persistent() {
		t.Error("default storage should be in-memory")
	}
}

func TestDefaultConfig_RequiresSecret(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("Validate() = %v, want jwt_secret error", err)
	}

	cfg.Security.Local.JWTSecret = testSecret
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with secret = %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"ENVIRONMENT", "server.environment"},
		{"JWT_SECRET", "security.local.jwt_secret"},
		{"CORS_ORIGINS", "cors.allowed_origins"},
		{"APP_URL", "cors.app_url"},
		{"OIDC_ROLES_CLAIM", "security.oidc.roles_claim"},
		{"LEDGERLINE_URL", "client.base_url"},
		{"STORAGE_PATH", "storage.path"},
		{"log_level", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestProcessSliceFields(t *testing.T) {
	k := koanf.New(".")
	if err := k.Set("cors.allowed_origins", " https://a.example.com, ,https://b.example.com "); err != nil {
		t.Fatal(err)
	}
	if err := k.Set("security.oidc.scopes", []string{"openid"}); err != nil {
		t.Fatal(err)
	}

	if err := processSliceFields(k); err != nil {
		t.Fatalf("processSliceFields() = %v", err)
	}

	want := []string{"https://a.example.com", "https://b.example.com"}
	if got := k.Strings("cors.allowed_origins"); !reflect.DeepEqual(got, want) {
		t.Errorf("allowed_origins = %v, want %v", got, want)
	}
	if got := k.Strings("security.oidc.scopes"); !reflect.DeepEqual(got, []string{"openid"}) {
		t.Errorf("scopes = %v, want [openid]", got)
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENVIRONMENT", "preview")
	t.Setenv("CORS_ORIGINS", "https://erp.example.com,https://ops.example.com")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("CLIENT_REFRESH_RATIO", "0.5")
	t.Setenv("STORAGE_PATH", "/var/lib/ledgerline")
	t.Setenv("STORAGE_GC_INTERVAL", "30m")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if !cfg.PreviewMode() {
		t.Error("PreviewMode() = false for preview environment")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://ops.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Security.Local.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %s, want 5m", cfg.Security.Local.AccessTokenTTL)
	}
	if cfg.Client.RefreshRatio != 0.5 {
		t.Errorf("RefreshRatio = %v, want 0.5", cfg.Client.RefreshRatio)
	}
	if !cfg.Storage.Persistent() || cfg.Storage.Path != "/var/lib/ledgerline" {
		t.Errorf("Storage.Path = %q, want /var/lib/ledgerline", cfg.Storage.Path)
	}
	if cfg.Storage.GCInterval != 30*time.Minute {
		t.Errorf("Storage.GCInterval = %s, want 30m", cfg.Storage.GCInterval)
	}
}

func TestLoadClientWithKoanf(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LEDGERLINE_URL", "https://erp.example.com")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("LoadWithKoanf() without JWT_SECRET should fail")
	}

	cfg, err := LoadClientWithKoanf()
	if err != nil {
		t.Fatalf("LoadClientWithKoanf() = %v", err)
	}
	if cfg.Client.BaseURL != "https://erp.example.com" {
		t.Errorf("Client.BaseURL = %q", cfg.Client.BaseURL)
	}

	t.Setenv("CLIENT_REFRESH_RATIO", "1.5")
	if _, err := LoadClientWithKoanf(); err == nil {
		t.Error("LoadClientWithKoanf() accepted refresh ratio 1.5")
	}
}

func TestLoadWithKoanf_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
server:
  port: 7070
security:
  local:
    jwt_secret: "` + testSecret + `"
    accounts:
      - username: alice
        password_hash: "$2a$10$abcdefghijklmnopqrstuu"
        email: alice@example.com
        roles: [accountant]
cors:
  allowed_origins:
    - https://erp.example.com
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7171")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() = %v", err)
	}

	if cfg.Server.Port != 7171 {
		t.Errorf("env must win over file: port = %d", cfg.Server.Port)
	}
	accounts := cfg.Security.Local.Accounts
	if len(accounts) != 1 || accounts[0].Username != "alice" || accounts[0].Roles[0] != "accountant" {
		t.Fatalf("Accounts = %+v", accounts)
	}
	if got := cfg.CORS.AllowedOrigins; len(got) != 1 || got[0] != "https://erp.example.com" {
		t.Errorf("AllowedOrigins = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid local", func(*Config) {}, ""},
		{"bad environment", func(c *Config) { c.Server.Environment = "staging" }, "Environment"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "Port"},
		{"bad auth mode", func(c *Config) { c.Security.AuthMode = "saml" }, "AuthMode"},
		{"ratio out of range", func(c *Config) { c.Client.RefreshRatio = 1 }, "RefreshRatio"},
		{"short secret", func(c *Config) { c.Security.Local.JWTSecret = "short" }, "jwt_secret"},
		{"ttl order", func(c *Config) { c.Security.Local.AccessTokenTTL = c.Security.Local.RefreshTokenTTL }, "shorter"},
		{"half admin", func(c *Config) { c.Security.Local.AdminUsername = "root" }, "ADMIN_PASSWORD_HASH"},
		{"duplicate account", func(c *Config) {
			a := AccountConfig{Username: "bob", PasswordHash: "x"}
			c.Security.Local.Accounts = []AccountConfig{a, a}
		}, "duplicate"},
		{"account without hash", func(c *Config) {
			c.Security.Local.Accounts = []AccountConfig{{Username: "bob"}}
		}, "PasswordHash"},
		{"oidc missing issuer", func(c *Config) {
			c.Security.AuthMode = AuthModeOIDC
			c.Security.OIDC.ClientID = "ledgerline"
			c.Security.OIDC.RedirectURL = "https://erp.example.com/callback"
		}, "OIDC_ISSUER_URL"},
		{"oidc valid", func(c *Config) {
			c.Security.AuthMode = AuthModeOIDC
			c.Security.OIDC.IssuerURL = "https://idp.example.com"
			c.Security.OIDC.ClientID = "ledgerline"
			c.Security.OIDC.RedirectURL = "https://erp.example.com/callback"
		}, ""},
		{"relative app url", func(c *Config) { c.CORS.AppURL = "erp.example.com" }, "AppURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.Local.JWTSecret = testSecret
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAllAccounts_BootstrapAdmin(t *testing.T) {
	c := LocalAuthConfig{
		Accounts:          []AccountConfig{{Username: "alice", PasswordHash: "h", Roles: []string{"user"}}},
		AdminUsername:     "root",
		AdminPasswordHash: "h2",
	}
	all := c.AllAccounts()
	if len(all) != 2 {
		t.Fatalf("AllAccounts() len = %d, want 2", len(all))
	}
	if all[1].Username != "root" || all[1].Roles[0] != "admin" {
		t.Errorf("bootstrap admin = %+v", all[1])
	}
}
