// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/ledgerline/internal/config"
)

func TestOpenRevocations(t *testing.T) {
	tests := []struct {
		name     string
		authMode string
		path     bool
		wantDB   bool
	}{
		{"local in memory", config.AuthModeLocal, false, false},
		{"local persistent", config.AuthModeLocal, true, true},
		{"oidc ignores storage", config.AuthModeOIDC, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Server.Environment = config.EnvDevelopment
			cfg.Security.AuthMode = tt.authMode
			if tt.path {
				cfg.Storage.Path = t.TempDir()
			}

			db, list, err := openRevocations(cfg)
			if err != nil {
				t.Fatalf("openRevocations() error = %v", err)
			}
			if (db != nil) != tt.wantDB || (list != nil) != tt.wantDB {
				t.Fatalf("db = %v, list = %v, want present = %v", db != nil, list != nil, tt.wantDB)
			}
			if db == nil {
				return
			}
			defer db.Close()

			ctx := context.Background()
			if _, err := list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
				t.Fatalf("Revoke() error = %v", err)
			}
			if revoked, err := list.IsRevoked(ctx, "jti-1"); err != nil || !revoked {
				t.Errorf("IsRevoked() = %v, %v", revoked, err)
			}
		})
	}
}
