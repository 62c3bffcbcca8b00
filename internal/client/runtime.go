// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/logging"
)

var (
	// ErrRuntimeClosed is returned by operations on a closed Runtime.
	ErrRuntimeClosed = errors.New("client runtime closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("client runtime already started")

	// ErrPasswordSignInUnsupported is returned by SignIn when the provider
	// does not accept passwords.
	ErrPasswordSignInUnsupported = errors.New("provider does not support password sign-in")
)

// Bootstrap resolves the session a runtime starts with, typically from
// persisted credentials. Returning (nil, nil) means no session.
type Bootstrap func(ctx context.Context) (*auth.Session, error)

// Runtime is the owning context of a client session: it holds the Store,
// keeps the Scheduler armed for the live session, and tells observers when
// initial resolution has settled.
type Runtime struct {
	provider  auth.IdentityProvider
	store     *Store
	scheduler *Scheduler
	log       zerolog.Logger

	// dispatchMu orders observer deliveries between the initial ready
	// notification and store changes.
	dispatchMu sync.Mutex

	// armMu serializes scheduler arming against guard attach and detach.
	armMu   sync.Mutex
	guarded bool
	mounts  int

	mu          sync.Mutex
	started     bool
	closed      bool
	ready       bool
	readyCh     chan struct{}
	observers   map[uint64]Listener
	nextID      uint64
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewRuntime creates a runtime around provider. The scheduler fires every
// refreshInterval while a refreshable session is live.
func NewRuntime(provider auth.IdentityProvider, refreshInterval time.Duration) *Runtime {
	store := NewStore(provider)
	return &Runtime{
		provider:  provider,
		store:     store,
		scheduler: NewScheduler(store, provider, refreshInterval),
		log:       logging.WithComponent("client-runtime"),
		readyCh:   make(chan struct{}),
		observers: make(map[uint64]Listener),
	}
}

// Store returns the runtime's session store.
func (r *Runtime) Store() *Store {
	return r.store
}

// Scheduler returns the runtime's refresh scheduler.
func (r *Runtime) Scheduler() *Scheduler {
	return r.scheduler
}

// Start begins resolving the initial session in the background. The runtime
// becomes ready once bootstrap returns; a bootstrap error settles to the
// absent session. bootstrap may be nil.
func (r *Runtime) Start(ctx context.Context, bootstrap Bootstrap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true

	r.unsubscribe = r.store.Subscribe(r.onChange)

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.resolve(ctx, bootstrap)
	return nil
}

func (r *Runtime) resolve(ctx context.Context, bootstrap Bootstrap) {
	defer r.wg.Done()

	var (
		s   *auth.Session
		err error
	)
	if bootstrap != nil {
		s, err = bootstrap(ctx)
	}
	if ctx.Err() != nil {
		return
	}

	switch {
	case err != nil:
		r.log.Warn().Err(err).Msg("Initial session resolution failed, starting signed out")
		r.store.Clear()
	case s.IsAuthenticated():
		r.store.Replace(s)
	default:
		r.store.Clear()
	}

	r.markReady()
}

func (r *Runtime) markReady() {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if r.closed || r.ready {
		r.mu.Unlock()
		return
	}
	r.ready = true
	close(r.readyCh)
	fns := r.observerList()
	r.mu.Unlock()

	snap := r.store.Current()
	r.log.Debug().Bool("authenticated", snap.IsAuthenticated()).Msg("Session resolution settled")
	for _, fn := range fns {
		fn(snap)
	}
}

// onChange runs on every store change.
func (r *Runtime) onChange(s *auth.Session) {
	r.armMu.Lock()
	if r.refreshWantedLocked() {
		r.scheduler.Arm(s)
	} else {
		r.scheduler.Disarm()
	}
	r.armMu.Unlock()

	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if !r.ready || r.closed {
		r.mu.Unlock()
		return
	}
	fns := r.observerList()
	r.mu.Unlock()

	// Deliver the snapshot live now so a late delivery never overrides a
	// newer one.
	snap := r.store.Current()
	for _, fn := range fns {
		fn(snap)
	}
}

// refreshWantedLocked must be called with armMu held. Once a guard has
// attached, the timer runs only while at least one guard is mounted.
func (r *Runtime) refreshWantedLocked() bool {
	return !r.guarded || r.mounts > 0
}

// Attach marks a guarded surface as mounted and keeps the refresh timer
// armed until every attached surface has called detach. A runtime nothing
// ever attaches to refreshes for its whole life.
func (r *Runtime) Attach() (detach func()) {
	r.armMu.Lock()
	r.guarded = true
	r.mounts++
	if r.mounts == 1 {
		r.scheduler.Arm(r.store.Current())
	}
	r.armMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.armMu.Lock()
			defer r.armMu.Unlock()
			r.mounts--
			if r.mounts == 0 {
				r.scheduler.DisarmWait()
				r.log.Debug().Msg("Last guarded surface torn down, refresh timer disarmed")
			}
		})
	}
}

// observerList must be called with mu held.
func (r *Runtime) observerList() []Listener {
	fns := make([]Listener, 0, len(r.observers))
	for _, fn := range r.observers {
		fns = append(fns, fn)
	}
	return fns
}

// Ready is closed once initial resolution has settled.
func (r *Runtime) Ready() <-chan struct{} {
	return r.readyCh
}

// Observe registers fn for session changes after initial resolution. If the
// runtime is already ready, fn is called immediately with the current
// session. Observers must not write to the store.
func (r *Runtime) Observe(fn Listener) (unsubscribe func()) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = fn
	ready := r.ready && !r.closed
	r.mu.Unlock()

	if ready {
		fn(r.store.Current())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

// SignIn authenticates with a username and password and makes the result
// the live session.
func (r *Runtime) SignIn(ctx context.Context, username, password string) (*auth.Session, error) {
	if r.isClosed() {
		return nil, ErrRuntimeClosed
	}
	pa, ok := r.provider.(auth.PasswordAuthenticator)
	if !ok {
		return nil, ErrPasswordSignInUnsupported
	}

	s, err := pa.SignIn(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if !s.IsAuthenticated() {
		return nil, fmt.Errorf("sign in: %w", auth.ErrUnauthenticated)
	}

	r.store.Replace(s)
	return r.store.Current(), nil
}

// SignOut revokes and clears the live session.
func (r *Runtime) SignOut(ctx context.Context) error {
	return r.store.SignOut(ctx)
}

// Close tears the runtime down: it stops observer delivery, cancels initial
// resolution and stops the scheduler. No refresh call starts after Close
// returns. Close must not be called from an observer.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.observers = make(map[uint64]Listener)
	r.mu.Unlock()

	r.wg.Wait()
	r.scheduler.Stop()
	r.log.Debug().Msg("Client runtime closed")
}

func (r *Runtime) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
