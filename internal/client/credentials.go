// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// CredentialsKey holds the cached session.
const CredentialsKey = "session"

// Credentials caches the session between ledgerctl invocations.
type Credentials struct {
	db *badger.DB
}

// NewCredentials creates a credential cache over db. The caller owns db.
func NewCredentials(db *badger.DB) *Credentials {
	return &Credentials{db: db}
}

// Load returns the cached session, or nil if none is stored.
func (c *Credentials) Load(_ context.Context) (*auth.Session, error) {
	var s auth.Session
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(CredentialsKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return &s, nil
}

// Save stores s. Saving a session without tokens deletes the entry.
func (c *Credentials) Save(_ context.Context, s *auth.Session) error {
	if s == nil || (s.AccessToken == "" && s.RefreshToken == "") {
		return c.Delete()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(CredentialsKey), data)
	}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Delete removes the cached session.
func (c *Credentials) Delete() error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(CredentialsKey))
	})
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// Persist keeps the cache in step with store. It returns the unsubscribe
// function.
func (c *Credentials) Persist(store *Store) (unsubscribe func()) {
	return store.Subscribe(func(s *auth.Session) {
		if err := c.Save(context.Background(), s); err != nil {
			logging.Warn().Err(err).Msg("Failed to persist session credentials")
		}
	})
}

// Bootstrap returns a Bootstrap that resolves the cached session against
// provider. An expired or rejected access token is refreshed once; if that
// fails too, the runtime starts signed out.
func (c *Credentials) Bootstrap(provider auth.IdentityProvider) Bootstrap {
	return func(ctx context.Context) (*auth.Session, error) {
		cached, err := c.Load(ctx)
		if err != nil {
			return nil, err
		}
		if cached == nil || cached.AccessToken == "" {
			return nil, nil
		}

		s, err := provider.Resolve(ctx, cached.AccessToken)
		if err == nil {
			s.RefreshToken = cached.RefreshToken
			return s, nil
		}
		if !errors.Is(err, auth.ErrUnauthenticated) || cached.RefreshToken == "" {
			return nil, err
		}

		s, err = provider.Refresh(ctx, cached.RefreshToken)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				if derr := c.Delete(); derr != nil {
					logging.Ctx(ctx).Warn().Err(derr).Msg("Failed to drop rejected credentials")
				}
			}
			return nil, fmt.Errorf("%w: %w", auth.ErrRefreshFailed, err)
		}
		return s, nil
	}
}
