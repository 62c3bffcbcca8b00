// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package services

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/ledgerline/internal/auth"
	"github.com/tomtom215/ledgerline/internal/logging"
)

// RevocationSweeperService drops expired entries from a revocation list
// on a fixed interval.
type RevocationSweeperService struct {
	list     auth.RevocationList
	interval time.Duration
	now      func() time.Time
}

// NewRevocationSweeperService creates the service. A non-positive interval
// means five minutes.
func NewRevocationSweeperService(list auth.RevocationList, interval time.Duration) *RevocationSweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RevocationSweeperService{list: list, interval: interval, now: time.Now}
}

// Serve implements suture.Service. A closed list ends the service with
// suture.ErrDoNotRestart.
func (s *RevocationSweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); errors.Is(err, auth.ErrRevocationListClosed) {
				logging.Warn().Msg("Revocation list closed, sweeper exiting")
				return suture.ErrDoNotRestart
			}
		}
	}
}

func (s *RevocationSweeperService) sweep(ctx context.Context) error {
	n, err := s.list.Sweep(ctx, s.now())
	if err != nil {
		logging.Error().Err(err).Msg("Revocation sweep failed")
		return err
	}
	if n > 0 {
		logging.Debug().Int("removed", n).Msg("Swept expired revocations")
	}
	return nil
}

// String implements fmt.Stringer.
func (s *RevocationSweeperService) String() string {
	return "revocation-sweeper"
}
