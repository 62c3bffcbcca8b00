// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/ledgerline/internal/api"
	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/authz"
	"github.com/tomtom215/ledgerline/internal/config"
	"github.com/tomtom215/ledgerline/internal/cors"
	"github.com/tomtom215/ledgerline/internal/kv"
	"github.com/tomtom215/ledgerline/internal/logging"
	"github.com/tomtom215/ledgerline/internal/supervisor"
	"github.com/tomtom215/ledgerline/internal/supervisor/services"
)

// revocationPrefix namespaces revoked token IDs in the key-value store.
const revocationPrefix = "revoked:"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("persistent_revocations", cfg.Storage.Persistent()).
		Msg("Starting Ledgerline")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table, err := authz.NewTable(authz.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("role policy table: %w", err)
	}

	db, revocations, err := openRevocations(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing key-value store")
			}
		}()
	}

	providers, err := auth.NewProvidersFromConfig(ctx, &cfg.Security, revocations)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}

	guard := auth.NewGuard(providers.Identity, table, cfg.Security.CookieName)
	handlers := auth.NewHandlers(auth.HandlersConfig{
		Provider:     providers.Identity,
		Passwords:    providers.Passwords,
		Guard:        guard,
		SecureCookie: cfg.IsProduction(),
	})

	origins := cors.NewValidator(cors.Config{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AppURL:         cfg.CORS.AppURL,
		PreviewMode:    cfg.PreviewMode(),
		PreviewSuffix:  cfg.CORS.PreviewSuffix,
	})
	if cfg.PreviewMode() {
		logging.Warn().
			Str("suffix", cfg.CORS.PreviewSuffix).
			Msg("Preview mode: hosting provider preview origins are trusted")
	}

	routerCfg := api.RouterConfig{
		Guard:   guard,
		Auth:    handlers,
		Origins: origins,
		SignInLimit: api.RateLimitConfig{
			Requests: cfg.Security.SignInRateLimit,
			Window:   cfg.Security.SignInRateWindow,
		},
		Revocations: providers.Revocations,
	}
	if b, ok := providers.Identity.(api.BreakerStater); ok {
		routerCfg.Breaker = b
	}
	if !routerCfg.SignInLimit.Enabled() {
		logging.Warn().Msg("Sign-in rate limiting is DISABLED (SIGNIN_RATE_LIMIT=0)")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(routerCfg),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout + 5*time.Second
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if providers.Revocations != nil {
		tree.AddBackgroundService(services.NewRevocationSweeperService(
			providers.Revocations, cfg.Security.RevocationSweepInterval))
	}
	if db != nil {
		tree.AddBackgroundService(kv.NewGarbageCollector(db, cfg.Storage.GCInterval, kv.DefaultGCRatio))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if providers.Revocations != nil {
		if err := providers.Revocations.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing revocation list")
		}
	}
	return nil
}

// openRevocations returns the revocation list for local mode. Without a
// storage path it returns a nil list and the provider keeps revocations
// in memory.
func openRevocations(cfg *config.Config) (*badger.DB, auth.RevocationList, error) {
	if cfg.Security.AuthMode != config.AuthModeLocal {
		return nil, nil, nil
	}
	if !cfg.Storage.Persistent() {
		event := logging.Info()
		if cfg.IsProduction() {
			event = logging.Warn()
		}
		event.Msg("Revocations kept in memory and lost on restart (STORAGE_PATH not set)")
		return nil, nil, nil
	}

	db, err := kv.Open(kv.Config{
		Path:        cfg.Storage.Path,
		SyncWrites:  cfg.Storage.SyncWrites,
		Compression: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("revocation store: %w", err)
	}
	return db, auth.NewBadgerRevocationList(db, revocationPrefix), nil
}
