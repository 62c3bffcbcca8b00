// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// DefaultRefreshRatio fires the refresh timer at 83% of the token lifetime.
const DefaultRefreshRatio = 0.83

// MinRefreshInterval bounds IntervalFor from below.
const MinRefreshInterval = time.Second

// IntervalFor returns the refresh interval for tokens living lifetime.
// A ratio outside (0, 1) falls back to DefaultRefreshRatio.
func IntervalFor(lifetime time.Duration, ratio float64) time.Duration {
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultRefreshRatio
	}
	d := time.Duration(float64(lifetime) * ratio)
	if d < MinRefreshInterval {
		d = MinRefreshInterval
	}
	return d
}

// Refresher renews a session from its refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
}

// Scheduler runs at most one refresh timer for a Store.
//
// Each Arm starts a new generation and cancels the previous one. A refresh
// result is applied only while its generation is current and only through
// Store.ReplaceIf against the snapshot the refresh was derived from, so a
// result that completes after disarm or after a concurrent sign-in/sign-out
// is discarded.
type Scheduler struct {
	store     *Store
	refresher Refresher
	interval  time.Duration
	// callTimeout bounds one refresh call.
	callTimeout time.Duration
	log         zerolog.Logger

	// callMu is held from the generation check through the refresh call.
	callMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a disarmed scheduler. Use IntervalFor to derive
// interval from a token lifetime; a non-positive interval means
// MinRefreshInterval.
func NewScheduler(store *Store, refresher Refresher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = MinRefreshInterval
	}
	return &Scheduler{
		store:       store,
		refresher:   refresher,
		interval:    interval,
		callTimeout: interval,
		log:         logging.WithComponent("refresh-scheduler"),
	}
}

// Interval returns the timer period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Arm disarms any previous timer and, if session is authenticated and holds
// a refresh token, starts a new one. Arm never blocks on a running refresh,
// so it is safe to call from a store listener.
func (s *Scheduler) Arm(session *auth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.disarmLocked()

	if !session.CanRefresh() {
		SchedulerArmedTotal.WithLabelValues("idle").Inc()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen

	s.wg.Add(1)
	go s.run(ctx, gen)
	SchedulerArmedTotal.WithLabelValues("armed").Inc()
	s.log.Debug().Uint64("generation", gen).Dur("interval", s.interval).Msg("Refresh timer armed")
}

// Disarm cancels the current timer without waiting for it to exit.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
}

// DisarmWait cancels the current timer and waits for a refresh call that
// already started to return. No refresh call starts after DisarmWait
// returns until the next Arm. It must not be called while a refresh call is
// on the stack.
func (s *Scheduler) DisarmWait() {
	s.Disarm()
	s.callMu.Lock()
	s.callMu.Unlock() //nolint:staticcheck // empty critical section waits for the call
}

// Armed reports whether a timer is currently armed.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop disarms permanently and waits for the timer goroutine to exit.
// No refresh call starts after Stop returns. Stop must not be called from a
// store listener.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.disarmLocked()
	s.mu.Unlock()

	s.wg.Wait()
}

// disarmLocked must be called with mu held.
func (s *Scheduler) disarmLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.gen == gen
}

func (s *Scheduler) run(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A cancelled generation must not start a call even if the
			// tick won the select race.
			if ctx.Err() != nil || !s.current(gen) {
				return
			}
			s.tick(ctx, gen)
		}
	}
}

// tick performs one refresh attempt.
func (s *Scheduler) tick(ctx context.Context, gen uint64) {
	prev := s.store.Current()
	if !prev.CanRefresh() {
		RefreshTotal.WithLabelValues("skipped").Inc()
		return
	}

	s.callMu.Lock()
	if ctx.Err() != nil || !s.current(gen) {
		s.callMu.Unlock()
		RefreshTotal.WithLabelValues("stale").Inc()
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	next, err := s.refresher.Refresh(callCtx, prev.RefreshToken)
	cancel()
	s.callMu.Unlock()

	if ctx.Err() != nil || !s.current(gen) {
		RefreshTotal.WithLabelValues("stale").Inc()
		s.log.Debug().Uint64("generation", gen).Msg("Discarding refresh result after disarm")
		return
	}

	if err == nil && !next.IsAuthenticated() {
		err = fmt.Errorf("%w: refresh returned no identity", auth.ErrUnauthenticated)
	}
	if err != nil {
		RefreshTotal.WithLabelValues("failure").Inc()
		s.log.Warn().
			Err(fmt.Errorf("%w: %w", auth.ErrRefreshFailed, err)).
			Str("subject", prev.Subject()).
			Time("expiry", prev.Expiry).
			Msg("Session refresh failed, keeping current session")
		return
	}

	if !s.store.ReplaceIf(prev, next) {
		RefreshTotal.WithLabelValues("stale").Inc()
		s.log.Debug().Msg("Session changed during refresh, discarding result")
		return
	}

	RefreshTotal.WithLabelValues("success").Inc()
	s.log.Debug().Str("subject", next.Subject()).Time("expiry", next.Expiry).Msg("Session refreshed")
}
