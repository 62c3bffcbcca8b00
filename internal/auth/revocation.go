// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrRevocationListClosed is returned after Close.
var ErrRevocationListClosed = errors.New("revocation list is closed")

// RevocationList records revoked token IDs (jti) until the token would have
// expired anyway.
type RevocationList interface {
	// Revoke records jti as revoked until expiresAt. It returns false if jti
	// was already revoked, which lets refresh rotation detect reuse.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)

	// IsRevoked reports whether jti is currently revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// Sweep drops entries that expired before now and returns how many.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Len returns the number of tracked entries.
	Len(ctx context.Context) (int, error)

	Close() error
}

// MemoryRevocationList keeps revoked IDs in process memory.
type MemoryRevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	closed  bool
	now     func() time.Time
}

// NewMemoryRevocationList creates an empty in-memory list.
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke implements RevocationList.
func (l *MemoryRevocationList) Revoke(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		RevocationOperationsTotal.WithLabelValues("revoke", "failure").Inc()
		return false, ErrRevocationListClosed
	}
	if exp, ok := l.entries[jti]; ok && l.now().Before(exp) {
		RevocationOperationsTotal.WithLabelValues("revoke", "already_revoked").Inc()
		return false, nil
	}
	l.entries[jti] = expiresAt
	RevocationOperationsTotal.WithLabelValues("revoke", "success").Inc()
	RevocationListSize.Set(float64(len(l.entries)))
	return true, nil
}

// IsRevoked implements RevocationList.
func (l *MemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return false, ErrRevocationListClosed
	}
	exp, ok := l.entries[jti]
	return ok && l.now().Before(exp), nil
}

// Sweep implements RevocationList.
func (l *MemoryRevocationList) Sweep(_ context.Context, now time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrRevocationListClosed
	}
	count := 0
	for jti, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, jti)
			count++
		}
	}
	RevocationOperationsTotal.WithLabelValues("sweep", "success").Inc()
	RevocationSweptTotal.Add(float64(count))
	RevocationListSize.Set(float64(len(l.entries)))
	return count, nil
}

// Len implements RevocationList.
func (l *MemoryRevocationList) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return 0, ErrRevocationListClosed
	}
	return len(l.entries), nil
}

// Close implements RevocationList.
func (l *MemoryRevocationList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.entries = nil
	return nil
}

// revocationEntry is the value stored per key in BadgerDB.
type revocationEntry struct {
	JTI       string    `json:"jti"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BadgerRevocationList persists revoked IDs in BadgerDB so revocations
// survive restarts. Entries carry a TTL matching the token expiry.
type BadgerRevocationList struct {
	db     *badger.DB
	prefix []byte
	mu     sync.RWMutex
	closed bool
}

// NewBadgerRevocationList creates a list over db. The db is owned by the
// caller; Close does not close it.
func NewBadgerRevocationList(db *badger.DB, prefix string) *BadgerRevocationList {
	if prefix == "" {
		prefix = "revoked:"
	}
	return &BadgerRevocationList{db: db, prefix: []byte(prefix)}
}

func (l *BadgerRevocationList) key(jti string) []byte {
	k := make([]byte, 0, len(l.prefix)+len(jti))
	k = append(k, l.prefix...)
	return append(k, jti...)
}

func (l *BadgerRevocationList) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Revoke implements RevocationList.
func (l *BadgerRevocationList) Revoke(_ context.Context, jti string, expiresAt time.Time) (bool, error) {
	if l.isClosed() {
		RevocationOperationsTotal.WithLabelValues("revoke", "failure").Inc()
		return false, ErrRevocationListClosed
	}

	now := time.Now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		// Already expired tokens are rejected by signature validation.
		RevocationOperationsTotal.WithLabelValues("revoke", "expired").Inc()
		return true, nil
	}

	added := false
	err := l.db.Update(func(txn *badger.Txn) error {
		key := l.key(jti)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(revocationEntry{JTI: jti, RevokedAt: now, ExpiresAt: expiresAt})
		if err != nil {
			return err
		}
		added = true
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(ttl))
	})
	if err != nil {
		// Conflicting writers raced on the same jti; the other one won.
		if errors.Is(err, badger.ErrConflict) {
			RevocationOperationsTotal.WithLabelValues("revoke", "already_revoked").Inc()
			return false, nil
		}
		RevocationOperationsTotal.WithLabelValues("revoke", "failure").Inc()
		return false, err
	}

	if added {
		RevocationOperationsTotal.WithLabelValues("revoke", "success").Inc()
	} else {
		RevocationOperationsTotal.WithLabelValues("revoke", "already_revoked").Inc()
	}
	return added, nil
}

// IsRevoked implements RevocationList.
func (l *BadgerRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	if l.isClosed() {
		return false, ErrRevocationListClosed
	}

	revoked := false
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(l.key(jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var entry revocationEntry
			if err := json.Unmarshal(val, &entry); err != nil {
				return err
			}
			revoked = time.Now().Before(entry.ExpiresAt)
			return nil
		})
	})
	return revoked, err
}

// Sweep implements RevocationList. Badger drops expired keys on its own
// during compaction; Sweep removes them eagerly so Len stays accurate.
func (l *BadgerRevocationList) Sweep(_ context.Context, now time.Time) (int, error) {
	if l.isClosed() {
		return 0, ErrRevocationListClosed
	}

	count := 0
	err := l.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = l.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry revocationEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				continue
			}
			if !now.Before(entry.ExpiresAt) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		RevocationOperationsTotal.WithLabelValues("sweep", "failure").Inc()
		return 0, err
	}

	RevocationOperationsTotal.WithLabelValues("sweep", "success").Inc()
	RevocationSweptTotal.Add(float64(count))
	if n, err := l.Len(context.Background()); err == nil {
		RevocationListSize.Set(float64(n))
	}
	return count, nil
}

// Len implements RevocationList.
func (l *BadgerRevocationList) Len(_ context.Context) (int, error) {
	if l.isClosed() {
		return 0, ErrRevocationListClosed
	}

	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = l.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close implements RevocationList.
func (l *BadgerRevocationList) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
