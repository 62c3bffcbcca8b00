// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package kv

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// DefaultGCRatio is the discard ratio passed to RunValueLogGC.
const DefaultGCRatio = 0.5

var (
	gcRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_gc_runs_total",
			Help: "Total number of value log GC runs",
		},
		[]string{"outcome"},
	)

	gcRewrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kv_gc_rewritten_files_total",
			Help: "Total number of value log files rewritten by GC",
		},
	)
)

// GarbageCollector periodically runs value log GC on a store.
type GarbageCollector struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
}

// NewGarbageCollector creates a collector. Non-positive values fall back to
// one hour and DefaultGCRatio.
func NewGarbageCollector(db *badger.DB, interval time.Duration, ratio float64) *GarbageCollector {
	if interval <= 0 {
		interval = time.Hour
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultGCRatio
	}
	return &GarbageCollector{db: db, interval: interval, ratio: ratio}
}

// Serve implements suture.Service.
func (g *GarbageCollector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.collect()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (g *GarbageCollector) String() string {
	return "kv-gc"
}

func (g *GarbageCollector) collect() {
	start := time.Now()
	n, err := RunGC(g.db, g.ratio)
	if err != nil {
		gcRunsTotal.WithLabelValues("failure").Inc()
		logging.Error().Err(err).Msg("Key-value store GC failed")
		return
	}
	gcRunsTotal.WithLabelValues("success").Inc()
	if n > 0 {
		gcRewrittenTotal.Add(float64(n))
		logging.Info().Int("rewritten", n).Dur("duration", time.Since(start)).Msg("Key-value store GC rewrote value logs")
	}
}
