// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package kv

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tomtom215/ledgerline/internal/logging"
)

// Config describes a BadgerDB store.
type Config struct {
	// Path is the database directory. Empty opens an in-memory store.
	Path string

	// SyncWrites forces fsync after every write.
	SyncWrites bool

	// Compression enables Snappy block compression.
	Compression bool

	// MemTableSize overrides the memtable size in bytes when positive.
	MemTableSize int64
}

// Open opens (or creates) the store described by cfg.
func Open(cfg Config) (*badger.DB, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}

	// Badger logs through its own logger; keep it quiet.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.Path == "").
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Key-value store opened")
	return db, nil
}

// RunGC runs value log garbage collection until nothing is left to rewrite.
// It returns the number of rewritten files.
func RunGC(db *badger.DB, ratio float64) (int, error) {
	if db.Opts().InMemory {
		return 0, nil
	}
	rewritten := 0
	for {
		err := db.RunValueLogGC(ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return rewritten, nil
		}
		if err != nil {
			return rewritten, fmt.Errorf("value log GC: %w", err)
		}
		rewritten++
	}
}
