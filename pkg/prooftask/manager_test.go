package prooftask

import (
	"context"
	"testing"
	"time"

	"github.com/strata-rollup/strata-asm/pkg/proofgraph"
)

type fakeProver struct{}

func (fakeProver) Prove(_ context.Context, key proofgraph.ProofKey, _ map[proofgraph.ProofKey]proofgraph.ProofReceipt) (proofgraph.ProofReceipt, error) {
	return proofgraph.ProofReceipt{Key: key, PublicValues: []byte("ok")}, nil
}

func testManager() *Manager {
	provers := map[proofgraph.Host]Prover{"host-a": fakeProver{}}
	cfg := DefaultConfig()
	cfg.LoopInterval = 10 * time.Millisecond
	return NewManager(cfg, NewMemProofDatabase(), provers, nil)
}

// TestSubmitExpandsProofDependencyGraph mirrors the checkpoint
// dependency-expansion scenario: submitting a Checkpoint task for an epoch
// spanning one L1 block range and one L2 block range creates every node
// on the path down to the leaves.
func TestSubmitExpandsProofDependencyGraph(t *testing.T) {
	m := testManager()
	root := proofgraph.Checkpoint(5)
	ranges := map[uint64]proofgraph.CheckpointRange{5: {L1Start: 100, L1End: 101, L2Start: 40, L2End: 41}}

	key, err := m.Submit(root, "host-a", ranges)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if key.Context != root {
		t.Fatalf("expected root key context %v, got %v", root, key.Context)
	}

	for _, ctx := range []proofgraph.ProofContext{
		proofgraph.BtcBlockspace(100, 101),
		proofgraph.L1Batch(100, 101),
		proofgraph.EvmEeStf(40, 41),
		proofgraph.ClStf(40, 41),
		proofgraph.ClAgg(40, 41),
		root,
	} {
		status, ok := m.PollStatus(proofgraph.ProofKey{Context: ctx, Host: "host-a"})
		if !ok || status != StatusPending {
			t.Fatalf("expected %v pending, got status=%v ok=%v", ctx, status, ok)
		}
	}
}

// TestSubmitTwiceIsIdempotent covers the double-submit scenario: a second
// Submit of the same (context, host) pair observes the existing task
// rather than creating a duplicate.
func TestSubmitTwiceIsIdempotent(t *testing.T) {
	m := testManager()
	ctx := proofgraph.BtcBlockspace(1, 2)

	k1, err := m.Submit(ctx, "host-a", nil)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	before, _ := m.tracker.Get(k1)

	k2, err := m.Submit(ctx, "host-a", nil)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	after, _ := m.tracker.Get(k2)

	if k1 != k2 {
		t.Fatalf("expected identical keys, got %v and %v", k1, k2)
	}
	if !before.CreatedAt.Equal(after.CreatedAt) {
		t.Fatal("expected second submit to leave the existing task's CreatedAt untouched")
	}
}

func TestRunCompletesLeafTasksThroughFakeProver(t *testing.T) {
	m := testManager()
	ctx := proofgraph.BtcBlockspace(1, 2)
	key, err := m.Submit(ctx, "host-a", nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go m.Run(runCtx)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		if status, ok := m.PollStatus(key); ok && status == StatusCompleted {
			receipt, err := m.FetchReceipt(key)
			if err != nil {
				t.Fatalf("fetch receipt: %v", err)
			}
			if string(receipt.PublicValues) != "ok" {
				t.Fatalf("unexpected receipt public values: %q", receipt.PublicValues)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not complete before deadline")
}
