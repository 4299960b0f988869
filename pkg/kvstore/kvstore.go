// Copyright 2025 Strata Contributors
//
// Package kvstore wraps CometBFT's dbm.DB interface behind a small KV
// contract. Its consumer in this repository is cmd/strata-asm-node's chain
// output store, which therefore need not know which concrete backend is in
// use; pkg/prooftask uses dbm.DB directly.
package kvstore

import (
	dbm "github.com/cometbft/cometbft-db"
)

// KV is the minimal storage contract this repository's durable state needs.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Iterator(start, end []byte) (dbm.Iterator, error)
}

// Store wraps a CometBFT dbm.DB and exposes KV.
type Store struct {
	db dbm.DB
}

// New wraps db. A nil db is accepted and behaves as an always-empty store,
// so tests that don't care about persistence can skip constructing a real
// backend.
func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// Open constructs a goleveldb-backed Store rooted at dir/name, the default
// backend for a single-process deployment.
func Open(name, dir string) (*Store, error) {
	db, err := dbm.NewDB(name, dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, nil
	}
	return s.db.Get(key)
}

func (s *Store) Set(key, value []byte) error {
	if s.db == nil {
		return nil
	}
	return s.db.SetSync(key, value)
}

func (s *Store) Has(key []byte) (bool, error) {
	if s.db == nil {
		return false, nil
	}
	return s.db.Has(key)
}

func (s *Store) Delete(key []byte) error {
	if s.db == nil {
		return nil
	}
	return s.db.DeleteSync(key)
}

func (s *Store) Iterator(start, end []byte) (dbm.Iterator, error) {
	if s.db == nil {
		return dbm.NewMemDB().Iterator(start, end)
	}
	return s.db.Iterator(start, end)
}

// Close releases the underlying database, if any.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
