// Copyright 2025 Strata Contributors

package l1reader

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// FakeClient is an in-memory L1Client used by tests: a height-indexed
// chain of blocks that can be mutated mid-test to simulate a reorg.
type FakeClient struct {
	mu     sync.Mutex
	blocks map[uint64]*wire.MsgBlock
}

// NewFakeClient constructs an empty fake chain.
func NewFakeClient() *FakeClient {
	return &FakeClient{blocks: make(map[uint64]*wire.MsgBlock)}
}

// SetBlock installs (or replaces, simulating a reorg) the block at height.
func (f *FakeClient) SetBlock(height uint64, block *wire.MsgBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[height] = block
}

// BlockAtHeight returns (nil, nil) for a height not yet installed, matching
// the "remote tip hasn't reached this height" convention l1reader expects
// from a real node's RPC response.
func (f *FakeClient) BlockAtHeight(_ context.Context, height uint64) (*wire.MsgBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks[height], nil
}
