// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package prefs

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by a Medium when the key does not exist.
var ErrNotFound = errors.New("prefs: key not found")

// Medium is the durable byte store behind the preference cache.
type Medium interface {
	Get(key string) ([]byte, error)
	// Set stores val. ttl is a storage-level hint; the cache applies its own
	// expiry check on read.
	Set(key string, val []byte, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// storageGrace keeps records on disk slightly past their logical TTL so the
// read path, not badger's GC, decides expiry.
const storageGrace = time.Hour

// BadgerMedium stores records in BadgerDB.
type BadgerMedium struct {
	db    *badger.DB
	owned bool
}

// OpenBadger opens a BadgerDB at path. An empty path opens an in-memory
// database, which does not survive restarts.
func OpenBadger(path string) (*BadgerMedium, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for preferences: %w", err)
	}
	return &BadgerMedium{db: db, owned: true}, nil
}

// NewBadgerMedium wraps an already open database. Close does not close it.
func NewBadgerMedium(db *badger.DB) *BadgerMedium {
	return &BadgerMedium{db: db}
}

// Get implements Medium.
func (m *BadgerMedium) Get(key string) ([]byte, error) {
	var out []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set implements Medium.
func (m *BadgerMedium) Set(key string, val []byte, ttl time.Duration) error {
	return m.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), val)
		if ttl > 0 {
			entry = entry.WithTTL(ttl + storageGrace)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

// Delete implements Medium. Deleting a missing key is not an error.
func (m *BadgerMedium) Delete(key string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Close closes the database if this medium opened it.
func (m *BadgerMedium) Close() error {
	if m.owned {
		return m.db.Close()
	}
	return nil
}

// DB returns the underlying database.
func (m *BadgerMedium) DB() *badger.DB {
	return m.db
}

var _ Medium = (*BadgerMedium)(nil)
