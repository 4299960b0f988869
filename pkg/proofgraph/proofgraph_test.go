package proofgraph

import "testing"

func TestL1BatchDepsIsBtcBlockspace(t *testing.T) {
	ctx := L1Batch(100, 102)
	deps := ctx.Deps()
	if len(deps) != 1 || deps[0] != BtcBlockspace(100, 102) {
		t.Fatalf("unexpected deps: %v", deps)
	}
}

func TestClAggDepsChainsThroughClStf(t *testing.T) {
	ctx := ClAgg(10, 12)
	deps := ctx.Deps()
	if len(deps) != 1 || deps[0] != ClStf(10, 12) {
		t.Fatalf("unexpected deps: %v", deps)
	}
	inner := deps[0].Deps()
	if len(inner) != 1 || inner[0] != EvmEeStf(10, 12) {
		t.Fatalf("unexpected inner deps: %v", inner)
	}
}

func TestBtcBlockspaceAndEvmEeStfAreLeaves(t *testing.T) {
	if deps := BtcBlockspace(1, 2).Deps(); deps != nil {
		t.Fatalf("expected no deps, got %v", deps)
	}
	if deps := EvmEeStf(1, 2).Deps(); deps != nil {
		t.Fatalf("expected no deps, got %v", deps)
	}
}

// TestExpandCheckpointProducesExpectedLeafSet mirrors the worked example of
// submitting Checkpoint(epoch=5) with a 2-block L1 range and a 2-block L2
// range: 2x BtcBlockspace collapse into one L1Batch because both blocks
// belong to the same contiguous range node, and similarly for the L2 side.
func TestExpandCheckpointProducesExpectedLeafSet(t *testing.T) {
	root := Checkpoint(5)
	ranges := map[uint64]CheckpointRange{
		5: {L1Start: 100, L1End: 101, L2Start: 40, L2End: 41},
	}
	order := Expand(root, ranges)

	want := []ProofContext{
		BtcBlockspace(100, 101),
		L1Batch(100, 101),
		EvmEeStf(40, 41),
		ClStf(40, 41),
		ClAgg(40, 41),
		Checkpoint(5),
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d nodes, got %d: %v", len(want), len(order), order)
	}
	for i, c := range want {
		if order[i] != c {
			t.Fatalf("node %d: expected %v, got %v", i, c, order[i])
		}
	}
}

func TestExpandDeduplicatesRepeatedContexts(t *testing.T) {
	root := ClAgg(1, 2)
	order := Expand(root, nil)
	seen := make(map[ProofContext]int)
	for _, c := range order {
		seen[c]++
	}
	for c, n := range seen {
		if n != 1 {
			t.Fatalf("context %v appeared %d times, want 1", c, n)
		}
	}
}

func TestProofKeyStringIncludesHost(t *testing.T) {
	k := ProofKey{Context: L1Batch(1, 2), Host: "sp1-cluster-0"}
	if got, want := k.String(), "L1Batch(1,2)@sp1-cluster-0"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
