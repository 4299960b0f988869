package l1reader

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

func mkBlock(prev chainhash.Hash, nonce uint32) *wire.MsgBlock {
	return &wire.MsgBlock{Header: wire.BlockHeader{PrevBlock: prev, Nonce: nonce}}
}

func testConfig(maxReorgDepth uint64) Config {
	cfg := DefaultConfig(maxReorgDepth)
	cfg.PollInterval = 5 * time.Millisecond
	cfg.RetryBase = 2 * time.Millisecond
	cfg.RetryRatio = 1
	cfg.RetryMaxTries = 3
	return cfg
}

func drainUntil(t *testing.T, r *Reader, want EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-r.Events():
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", want)
		}
	}
}

func TestReaderEmitsBlockDataWhenChainExtends(t *testing.T) {
	client := NewFakeClient()
	genesisID := chainhash.Hash{0x01}
	client.SetBlock(1, mkBlock(genesisID, 1))

	r := New(testConfig(5), client, 0, [32]byte(genesisID), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	ev := drainUntil(t, r, EventBlockData, 150*time.Millisecond)
	if ev.Height != 1 {
		t.Fatalf("expected height 1, got %d", ev.Height)
	}
}

// chainTo builds a straight chain of n blocks atop prev and installs them
// on client starting at startHeight, returning the final block's hash.
// salt is added to every block's nonce, so a non-zero salt rebuilt from the
// same prev and startHeight yields different blocks (a competing fork).
func chainTo(client *FakeClient, prev chainhash.Hash, startHeight uint64, n int, salt uint32) chainhash.Hash {
	for i := 0; i < n; i++ {
		b := mkBlock(prev, salt+uint32(startHeight)+uint32(i)+1)
		client.SetBlock(startHeight+uint64(i), b)
		prev = b.Header.BlockHash()
	}
	return prev
}

// TestReaderRevertsAtMaxReorgDepthBoundary covers the success boundary:
// with MaxReorgDepth=3 and a tip at height 5, the tail tracks heights
// 3,4,5. A reorg whose common ancestor is height 3 (the oldest tracked
// entry, h = current_height - MAX_REORG_DEPTH + 1 = 3) must resolve as a
// RevertTo rather than a DeepReorg.
func TestReaderRevertsAtMaxReorgDepthBoundary(t *testing.T) {
	const maxDepth = 3
	client := NewFakeClient()
	genesisID := chainhash.Hash{0xaa}

	tip3 := chainTo(client, genesisID, 1, 3, 0) // heights 1,2,3

	r := New(testConfig(maxDepth), client, 0, [32]byte(genesisID), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	for h := uint64(1); h <= 3; h++ {
		drainUntil(t, r, EventBlockData, 200*time.Millisecond)
	}
	_ = chainTo(client, tip3, 4, 2, 0) // heights 4,5, still on the original fork
	for h := uint64(4); h <= 5; h++ {
		drainUntil(t, r, EventBlockData, 200*time.Millisecond)
	}

	// Fork after height 3: blocks 4',5',6' replace 4,5 and extend to 6,
	// leaving block 3 (the oldest tracked tail entry) untouched.
	chainTo(client, tip3, 4, 3, 1000)

	ev := drainUntil(t, r, EventRevertTo, 300*time.Millisecond)
	if ev.Height != 3 {
		t.Fatalf("expected revert to height 3 (the tracked boundary), got %d", ev.Height)
	}
}

// TestReaderDeepReorgOneBelowBoundary covers the matching failure case:
// with the same MaxReorgDepth=3 and tip at height 5, a reorg whose common
// ancestor is height 2 - one below the tracked boundary - cannot be
// resolved from the tail and must emit DeepReorg.
func TestReaderDeepReorgOneBelowBoundary(t *testing.T) {
	const maxDepth = 3
	client := NewFakeClient()
	genesisID := chainhash.Hash{0xbb}

	tip2 := chainTo(client, genesisID, 1, 2, 0) // heights 1,2
	tip5 := chainTo(client, tip2, 3, 3, 0)       // heights 3,4,5

	r := New(testConfig(maxDepth), client, 0, [32]byte(genesisID), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer r.Stop()

	for h := uint64(1); h <= 5; h++ {
		drainUntil(t, r, EventBlockData, 200*time.Millisecond)
	}
	_ = tip5

	// Fork after height 2: blocks 3',4',5',6' replace 3,4,5 and extend to
	// 6. Height 2, the common ancestor, is below the tracked tail window
	// (which only remembers 3,4,5).
	chainTo(client, tip2, 3, 4, 1000)

	ev := drainUntil(t, r, EventDeepReorg, 300*time.Millisecond)
	if ev.Height != 3 {
		t.Fatalf("expected DeepReorg reported at the oldest tracked height 3, got %d", ev.Height)
	}
}
