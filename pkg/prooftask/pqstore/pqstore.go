// Copyright 2025 Strata Contributors
//
// Package pqstore is a Postgres-durable ProofDatabase, the SQL-backed
// alternative to prooftask's default CometBFT-KV implementation, for
// deployments that want proof receipts queryable outside the process.
package pqstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/strata-rollup/strata-asm/pkg/proofgraph"
	"github.com/strata-rollup/strata-asm/pkg/prooftask"
)

// Store is a Postgres-backed prooftask.ProofDatabase.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and verifies the schema exists, configuring a
// modest connection pool sized for the scheduler's own worker count
// rather than a general web-request load.
func Open(dsn string, maxConns int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pqstore: open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pqstore: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS proof_receipts (
	proof_key   TEXT PRIMARY KEY,
	receipt     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS proof_deps (
	context     TEXT PRIMARY KEY,
	deps        JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`)
	if err != nil {
		return fmt.Errorf("pqstore: migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// PutReceiptIfAbsent inserts receipt under key's string form, doing nothing
// if a row for that key already exists - Postgres's ON CONFLICT DO NOTHING
// gives the same put-if-absent idempotence the KV-backed store implements
// with a Get-then-Set.
func (s *Store) PutReceiptIfAbsent(key proofgraph.ProofKey, receipt proofgraph.ProofReceipt) error {
	blob, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("pqstore: encode receipt: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO proof_receipts (proof_key, receipt) VALUES ($1, $2) ON CONFLICT (proof_key) DO NOTHING`,
		key.String(), blob,
	)
	if err != nil {
		return fmt.Errorf("pqstore: put receipt: %w", err)
	}
	return nil
}

func (s *Store) FetchReceipt(key proofgraph.ProofKey) (proofgraph.ProofReceipt, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT receipt FROM proof_receipts WHERE proof_key = $1`, key.String()).Scan(&blob)
	if err == sql.ErrNoRows {
		return proofgraph.ProofReceipt{}, prooftask.ErrNotReady
	}
	if err != nil {
		return proofgraph.ProofReceipt{}, fmt.Errorf("pqstore: fetch receipt: %w", err)
	}
	var r proofgraph.ProofReceipt
	if err := json.Unmarshal(blob, &r); err != nil {
		return proofgraph.ProofReceipt{}, fmt.Errorf("pqstore: decode receipt: %w", err)
	}
	return r, nil
}

func (s *Store) PutDeps(ctx proofgraph.ProofContext, deps []proofgraph.ProofContext) error {
	blob, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("pqstore: encode deps: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO proof_deps (context, deps) VALUES ($1, $2) ON CONFLICT (context) DO NOTHING`,
		ctx.String(), blob,
	)
	if err != nil {
		return fmt.Errorf("pqstore: put deps: %w", err)
	}
	return nil
}

func (s *Store) GetDeps(ctx proofgraph.ProofContext) ([]proofgraph.ProofContext, bool, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT deps FROM proof_deps WHERE context = $1`, ctx.String()).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pqstore: fetch deps: %w", err)
	}
	var deps []proofgraph.ProofContext
	if err := json.Unmarshal(blob, &deps); err != nil {
		return nil, false, fmt.Errorf("pqstore: decode deps: %w", err)
	}
	return deps, true, nil
}

var _ prooftask.ProofDatabase = (*Store)(nil)
