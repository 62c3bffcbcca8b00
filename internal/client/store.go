// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// Revoker invalidates a session's credentials at the identity provider.
type Revoker interface {
	Revoke(ctx context.Context, s *auth.Session) error
}

// Listener is called after every store change with the new snapshot.
// Listeners run synchronously on the writer's goroutine and must not write
// to the store.
type Listener func(*auth.Session)

// Store holds the live session as an immutable snapshot behind an atomic
// pointer. Identity and tokens are always swapped together.
type Store struct {
	cur     atomic.Pointer[auth.Session]
	revoker Revoker

	// notifyMu serializes notifications so listeners observe changes in
	// store order.
	notifyMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// NewStore creates a store holding the absent session. revoker may be nil,
// in which case SignOut only clears local state.
func NewStore(revoker Revoker) *Store {
	s := &Store{
		revoker:   revoker,
		listeners: make(map[uint64]Listener),
	}
	s.cur.Store(auth.Absent())
	return s
}

// Current returns the live snapshot. It never blocks and never returns nil.
// The snapshot is shared: callers must treat it as read-only.
func (s *Store) Current() *auth.Session {
	return s.cur.Load()
}

// Replace swaps in a copy of next. A nil next clears the session.
func (s *Store) Replace(next *auth.Session) {
	snap := next.Clone()
	s.cur.Store(snap)
	s.notify()
}

// ReplaceIf swaps in a copy of next only if the live snapshot is still
// prev, as returned by Current. It reports whether the swap happened.
func (s *Store) ReplaceIf(prev, next *auth.Session) bool {
	if !s.cur.CompareAndSwap(prev, next.Clone()) {
		return false
	}
	s.notify()
	return true
}

// Clear sets the absent session. Clearing an absent session is a no-op.
func (s *Store) Clear() {
	for {
		prev := s.cur.Load()
		if isEmpty(prev) {
			return
		}
		if s.cur.CompareAndSwap(prev, auth.Absent()) {
			s.notify()
			return
		}
	}
}

// SignOut revokes the live session, then clears local state whether or not
// revocation succeeded. A revocation failure is logged and returned.
func (s *Store) SignOut(ctx context.Context) error {
	prev := s.Current()

	var err error
	if s.revoker != nil && (prev.AccessToken != "" || prev.RefreshToken != "") {
		if rerr := s.revoker.Revoke(ctx, prev); rerr != nil {
			err = fmt.Errorf("sign out: revoke: %w", rerr)
			logging.Ctx(ctx).Warn().Err(rerr).Str("subject", prev.Subject()).
				Msg("Session revoke failed, clearing local session anyway")
		}
	}

	s.Clear()
	return err
}

// Subscribe registers fn for store changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// notify delivers the snapshot that is live when the notification runs, so
// the last notification always carries the latest state. A listener removed
// during delivery may still see the in-flight call.
func (s *Store) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	snap := s.cur.Load()
	for _, fn := range fns {
		fn(snap)
	}
}

func isEmpty(s *auth.Session) bool {
	return !s.IsAuthenticated() && s.AccessToken == "" && s.RefreshToken == ""
}
