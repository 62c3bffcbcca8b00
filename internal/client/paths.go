// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// LastVisitedPathKey is the single key holding the last visited path.
const LastVisitedPathKey = "last_visited_path"

// PathStore persists the last visited protected path.
type PathStore interface {
	// Get returns the stored path, or "" if none.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, path string) error
}

// skipPaths are never recorded.
var skipPaths = map[string]struct{}{
	"/":        {},
	SignInPath: {},
	"/signout": {},
}

// Navigator records navigation for redirect-after-login.
type Navigator struct {
	paths PathStore
}

// NewNavigator creates a navigator over paths.
func NewNavigator(paths PathStore) *Navigator {
	return &Navigator{paths: paths}
}

// Visit records path unless it is the root or a sign-in/sign-out path.
func (n *Navigator) Visit(ctx context.Context, path string) error {
	path = normalizePath(path)
	if _, skip := skipPaths[path]; skip {
		return nil
	}
	if err := n.paths.Set(ctx, path); err != nil {
		return fmt.Errorf("record visited path: %w", err)
	}
	return nil
}

// RedirectTarget returns the last visited path, or "/" when none is stored
// or the store fails.
func (n *Navigator) RedirectTarget(ctx context.Context) string {
	path, err := n.paths.Get(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to read last visited path")
		return "/"
	}
	if path == "" {
		return "/"
	}
	return path
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

// MemoryPathStore keeps the path in memory.
type MemoryPathStore struct {
	mu   sync.RWMutex
	path string
}

// Get implements PathStore.
func (m *MemoryPathStore) Get(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path, nil
}

// Set implements PathStore.
func (m *MemoryPathStore) Set(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	return nil
}

// BadgerPathStore keeps the path in a badger database.
type BadgerPathStore struct {
	db *badger.DB
}

// NewBadgerPathStore creates a path store over db. The caller owns db.
func NewBadgerPathStore(db *badger.DB) *BadgerPathStore {
	return &BadgerPathStore{db: db}
}

// Get implements PathStore.
func (b *BadgerPathStore) Get(_ context.Context) (string, error) {
	var path string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(LastVisitedPathKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			path = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", LastVisitedPathKey, err)
	}
	return path, nil
}

// Set implements PathStore.
func (b *BadgerPathStore) Set(_ context.Context, path string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(LastVisitedPathKey), []byte(path))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", LastVisitedPathKey, err)
	}
	return nil
}
