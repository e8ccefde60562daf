// Package kv holds badger backed stores for pending OAuth transactions and
// encryption key material.
package kv

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Options configures Open.
type Options struct {
	// Path is the badger directory. Empty opens an in-memory database.
	Path       string
	SyncWrites bool
}

// Open opens a badger database sized for small records.
func Open(opts Options) (*badger.DB, error) {
	bo := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		bo = bo.WithInMemory(true)
	}
	bo.Logger = nil
	bo.ValueLogFileSize = 16 << 20
	bo.SyncWrites = opts.SyncWrites

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return db, nil
}
