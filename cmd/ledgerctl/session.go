// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/client"
	"github.com/tomtom215/ledgerline/internal/config"
	"github.com/tomtom215/ledgerline/internal/kv"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	baseURL   string
	statePath string
	verbose   bool
}

// cliSession is one command's view of the client runtime.
type cliSession struct {
	cfg       config.ClientConfig
	db        *badger.DB
	api       *client.APIClient
	runtime   *client.Runtime
	creds     *client.Credentials
	nav       *client.Navigator
	unpersist func()
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "ledgerline", "state")
}

// openSession loads configuration, opens the state store and starts a
// runtime from the cached credentials. It returns once initial resolution
// has settled.
func openSession(ctx context.Context, opts *rootOptions) (*cliSession, error) {
	cfg, err := config.LoadClientWithKoanf()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console"})

	cc := cfg.Client
	if opts.baseURL != "" {
		cc.BaseURL = opts.baseURL
	}
	if opts.statePath != "" {
		cc.StatePath = opts.statePath
	}
	if cc.StatePath == "" {
		cc.StatePath = defaultStatePath()
	}
	if cc.BaseURL == "" {
		return nil, fmt.Errorf("no server URL: set LEDGERLINE_URL or --url")
	}

	if err := os.MkdirAll(cc.StatePath, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	db, err := kv.Open(kv.Config{Path: cc.StatePath, SyncWrites: true})
	if err != nil {
		return nil, err
	}

	api := client.NewAPIClient(cc.BaseURL, cc.Timeout)
	provider := auth.NewBreakerProvider(api, auth.BreakerConfig{})
	rt := client.NewRuntime(provider, client.IntervalFor(cc.TokenLifetime, cc.RefreshRatio))
	creds := client.NewCredentials(db)

	s := &cliSession{
		cfg:     cc,
		db:      db,
		api:     api,
		runtime: rt,
		creds:   creds,
		nav:     client.NewNavigator(client.NewBadgerPathStore(db)),
	}

	if err := rt.Start(ctx, creds.Bootstrap(provider)); err != nil {
		s.Close()
		return nil, err
	}
	select {
	case <-rt.Ready():
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	// A bootstrap failure settles signed out without touching the cache,
	// so persistence starts only after resolution.
	if cur := rt.Store().Current(); cur.IsAuthenticated() {
		if err := creds.Save(ctx, cur); err != nil {
			logging.Warn().Err(err).Msg("Failed to persist session credentials")
		}
	}
	s.unpersist = creds.Persist(rt.Store())
	return s, nil
}

// Current returns the live session.
func (s *cliSession) Current() *auth.Session {
	return s.runtime.Store().Current()
}

// Close stops the runtime and closes the state store.
func (s *cliSession) Close() {
	s.runtime.Close()
	if s.unpersist != nil {
		s.unpersist()
	}
	if err := s.db.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close state store")
	}
}
