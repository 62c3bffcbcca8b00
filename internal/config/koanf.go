// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/ledgerline/internal/cors"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ledgerline/config.yaml",
	"/etc/ledgerline/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultRefreshRatio schedules token renewal at 83% of the token lifetime.
const DefaultRefreshRatio = 0.83

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     EnvProduction,
		},
		Security: SecurityConfig{
			AuthMode:   AuthModeLocal,
			CookieName: "ledgerline_session",
			Local: LocalAuthConfig{
				Issuer:          "ledgerline",
				AccessTokenTTL:  15 * time.Minute,
				RefreshTokenTTL: 7 * 24 * time.Hour,
			},
			OIDC: OIDCConfig{
				Scopes:     []string{"openid", "profile", "email"},
				RolesClaim: "roles",
				Timeout:    10 * time.Second,
			},
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				MaxRequests:      1,
				Interval:         time.Minute,
				OpenTimeout:      30 * time.Second,
			},
			SignInRateLimit:         5,
			SignInRateWindow:        5 * time.Minute,
			RevocationSweepInterval: 5 * time.Minute,
		},
		CORS: CORSConfig{
			PreviewSuffix: cors.DefaultPreviewSuffix,
		},
		Storage: StorageConfig{
			SyncWrites: true,
			GCInterval: time.Hour,
		},
		Client: ClientConfig{
			BaseURL:       "http://localhost:8080",
			TokenLifetime: 15 * time.Minute,
			RefreshRatio:  DefaultRefreshRatio,
			Timeout:       15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration from defaults, an optional config file and
// environment variables, in that order of precedence, then validates it.
func LoadWithKoanf() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadClientWithKoanf loads the same layers as LoadWithKoanf but validates
// only the client and logging sections, so API clients run without server
// secrets.
func LoadClientWithKoanf() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg.Client); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", formatValidationErrors(err))
	}
	if err := validate.Struct(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", formatValidationErrors(err))
	}
	return cfg, nil
}

func load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file, or "" if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"cors.allowed_origins",
	"security.oidc.scopes",
	"security.oidc.default_roles",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":        "server.host",
	"http_port":        "server.port",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Security
	"auth_mode":                 "security.auth_mode",
	"session_cookie_name":       "security.cookie_name",
	"jwt_secret":                "security.local.jwt_secret",
	"jwt_issuer":                "security.local.issuer",
	"access_token_ttl":          "security.local.access_token_ttl",
	"refresh_token_ttl":         "security.local.refresh_token_ttl",
	"admin_username":            "security.local.admin_username",
	"admin_password_hash":       "security.local.admin_password_hash",
	"signin_rate_limit":         "security.signin_rate_limit",
	"signin_rate_window":        "security.signin_rate_window",
	"revocation_sweep_interval": "security.revocation_sweep_interval",

	// OIDC
	"oidc_issuer_url":    "security.oidc.issuer_url",
	"oidc_client_id":     "security.oidc.client_id",
	"oidc_client_secret": "security.oidc.client_secret",
	"oidc_redirect_url":  "security.oidc.redirect_url",
	"oidc_scopes":        "security.oidc.scopes",
	"oidc_roles_claim":   "security.oidc.roles_claim",
	"oidc_default_roles": "security.oidc.default_roles",
	"oidc_timeout":       "security.oidc.timeout",

	// Identity provider circuit breaker
	"idp_breaker_failure_threshold": "security.breaker.failure_threshold",
	"idp_breaker_max_requests":      "security.breaker.max_requests",
	"idp_breaker_interval":          "security.breaker.interval",
	"idp_breaker_open_timeout":      "security.breaker.open_timeout",

	// CORS
	"cors_origins":        "cors.allowed_origins",
	"app_url":             "cors.app_url",
	"cors_preview_suffix": "cors.preview_suffix",

	// Storage
	"storage_path":        "storage.path",
	"storage_sync_writes": "storage.sync_writes",
	"storage_gc_interval": "storage.gc_interval",

	// Client
	"ledgerline_url":        "client.base_url",
	"client_token_lifetime": "client.token_lifetime",
	"client_refresh_ratio":  "client.refresh_ratio",
	"client_state_path":     "client.state_path",
	"client_timeout":        "client.timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
