// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// BreakerConfig configures a BreakerProvider.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive unavailable results
	// that opens the breaker.
	FailureThreshold uint32
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval clears failure counts while closed. Zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
}

// BreakerProvider wraps an IdentityProvider with a circuit breaker.
// Only ErrUnavailable counts as a failure; rejected credentials do not
// trip the breaker. An open breaker yields ErrUnavailable without calling
// the wrapped provider.
type BreakerProvider struct {
	next IdentityProvider
	cb   *gobreaker.CircuitBreaker[*Session]
}

// NewBreakerProvider wraps next.
func NewBreakerProvider(next IdentityProvider, cfg BreakerConfig) *BreakerProvider {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	name := "idp-" + next.Name()
	BreakerState.WithLabelValues(next.Name()).Set(0)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			BreakerState.WithLabelValues(next.Name()).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Identity provider circuit breaker state changed")
		},
	}

	return &BreakerProvider{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*Session](settings),
	}
}

// Name implements IdentityProvider.
func (b *BreakerProvider) Name() string {
	return b.next.Name()
}

// State returns the breaker state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

// Unwrap returns the wrapped provider.
func (b *BreakerProvider) Unwrap() IdentityProvider {
	return b.next
}

// Resolve implements IdentityProvider.
func (b *BreakerProvider) Resolve(ctx context.Context, token string) (*Session, error) {
	return b.execute(func() (*Session, error) {
		return b.next.Resolve(ctx, token)
	})
}

// Refresh implements IdentityProvider.
func (b *BreakerProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	return b.execute(func() (*Session, error) {
		return b.next.Refresh(ctx, refreshToken)
	})
}

// Revoke implements IdentityProvider.
func (b *BreakerProvider) Revoke(ctx context.Context, s *Session) error {
	_, err := b.execute(func() (*Session, error) {
		return nil, b.next.Revoke(ctx, s)
	})
	return err
}

// SignIn forwards to the wrapped provider when it accepts passwords.
func (b *BreakerProvider) SignIn(ctx context.Context, username, password string) (*Session, error) {
	pa, ok := b.next.(PasswordAuthenticator)
	if !ok {
		return nil, fmt.Errorf("%w: provider %s does not accept passwords", ErrUnauthenticated, b.next.Name())
	}
	return b.execute(func() (*Session, error) {
		return pa.SignIn(ctx, username, password)
	})
}

func (b *BreakerProvider) execute(fn func() (*Session, error)) (*Session, error) {
	s, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, err
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
