// Copyright 2025 Strata Contributors

package prooftask

import (
	"encoding/json"
	"fmt"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/strata-rollup/strata-asm/pkg/proofgraph"
)

// ErrNotReady is returned by ProofDatabase.FetchReceipt when the key's
// proof has not completed yet.
var ErrNotReady = fmt.Errorf("prooftask: receipt not ready")

// ProofDatabase is the content-addressed store backing the scheduler:
// ProofKey -> ProofReceipt, plus ProofContext -> its dependency contexts
// (mirroring the dependency edges pkg/proofgraph.Expand already knows how
// to compute, persisted here so a restarted scheduler doesn't need to
// recompute them from scratch).
type ProofDatabase interface {
	PutReceiptIfAbsent(key proofgraph.ProofKey, receipt proofgraph.ProofReceipt) error
	FetchReceipt(key proofgraph.ProofKey) (proofgraph.ProofReceipt, error)
	PutDeps(ctx proofgraph.ProofContext, deps []proofgraph.ProofContext) error
	GetDeps(ctx proofgraph.ProofContext) ([]proofgraph.ProofContext, bool, error)
}

// kvProofDatabase is a ProofDatabase backed by a CometBFT dbm.DB, the same
// KV abstraction pkg/kvstore wraps for other durable state in this
// repository. Keys are namespaced by prefix so receipts and dependency
// lists share one underlying database without colliding.
type kvProofDatabase struct {
	db dbm.DB
}

// NewKVProofDatabase wraps db as a ProofDatabase.
func NewKVProofDatabase(db dbm.DB) ProofDatabase {
	return &kvProofDatabase{db: db}
}

// NewMemProofDatabase is a convenience constructor for tests and
// single-process deployments with no durability requirement.
func NewMemProofDatabase() ProofDatabase {
	return &kvProofDatabase{db: dbm.NewMemDB()}
}

func receiptKey(k proofgraph.ProofKey) []byte {
	return []byte("receipt/" + k.String())
}

func depsKey(c proofgraph.ProofContext) []byte {
	return []byte("deps/" + c.String())
}

// PutReceiptIfAbsent writes receipt under key only if no receipt is
// already stored there, making repeated completions of the same task
// idempotent.
func (d *kvProofDatabase) PutReceiptIfAbsent(key proofgraph.ProofKey, receipt proofgraph.ProofReceipt) error {
	k := receiptKey(key)
	existing, err := d.db.Get(k)
	if err != nil {
		return fmt.Errorf("prooftask: check existing receipt: %w", err)
	}
	if existing != nil {
		return nil
	}
	blob, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("prooftask: encode receipt: %w", err)
	}
	return d.db.SetSync(k, blob)
}

func (d *kvProofDatabase) FetchReceipt(key proofgraph.ProofKey) (proofgraph.ProofReceipt, error) {
	blob, err := d.db.Get(receiptKey(key))
	if err != nil {
		return proofgraph.ProofReceipt{}, fmt.Errorf("prooftask: fetch receipt: %w", err)
	}
	if blob == nil {
		return proofgraph.ProofReceipt{}, ErrNotReady
	}
	var r proofgraph.ProofReceipt
	if err := json.Unmarshal(blob, &r); err != nil {
		return proofgraph.ProofReceipt{}, fmt.Errorf("prooftask: decode receipt: %w", err)
	}
	return r, nil
}

func (d *kvProofDatabase) PutDeps(ctx proofgraph.ProofContext, deps []proofgraph.ProofContext) error {
	blob, err := json.Marshal(deps)
	if err != nil {
		return fmt.Errorf("prooftask: encode deps: %w", err)
	}
	return d.db.SetSync(depsKey(ctx), blob)
}

func (d *kvProofDatabase) GetDeps(ctx proofgraph.ProofContext) ([]proofgraph.ProofContext, bool, error) {
	blob, err := d.db.Get(depsKey(ctx))
	if err != nil {
		return nil, false, fmt.Errorf("prooftask: fetch deps: %w", err)
	}
	if blob == nil {
		return nil, false, nil
	}
	var deps []proofgraph.ProofContext
	if err := json.Unmarshal(blob, &deps); err != nil {
		return nil, false, fmt.Errorf("prooftask: decode deps: %w", err)
	}
	return deps, true, nil
}
