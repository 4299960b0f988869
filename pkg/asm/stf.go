package asm

import (
	"fmt"

	"github.com/btcsuite/btcd/wire"

	"github.com/strata-rollup/strata-asm/pkg/l1chain"
	"github.com/strata-rollup/strata-asm/pkg/merkle"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol"
)

// Apply is the Anchor State Machine's pure state-transition function: given
// the state after the previous L1 block and the next candidate block, it
// produces the advanced AnchorState and the per-subprotocol event hashes
// committed this block, or rejects the block outright.
//
// Apply never performs I/O, reads the wall clock, or consults unseeded
// randomness: the same (prev, block) pair always produces the same result.
// Rejection is total, any failure at any stage returns prev unchanged
// alongside the error; no partial section state is ever persisted.
func Apply(prev AnchorState, block *wire.MsgBlock, registry *subprotocol.Registry, cfg *l1chain.FilterConfig, visitors map[uint8]l1chain.TxVisitor) (AnchorState, map[uint8][32]byte, error) {
	header := &block.Header
	blkHash := header.BlockHash()
	blkID := [32]byte(blkHash)

	newHeaderState, err := CheckAndUpdateContinuity(prev.Chain.HeaderState, header, blkID)
	if err != nil {
		return prev, nil, fmt.Errorf("asm: block rejected: %w", err)
	}

	blk := slotrng.L1BlockCommitment{Height: newHeaderState.Height, BlkID: blkID}

	extract := l1chain.IndexBlock(block, cfg, visitors)

	prevStates := make(map[uint8][]byte, len(prev.Sections))
	for _, s := range prev.Sections {
		prevStates[s.SubprotocolID] = s.Data
	}

	result, err := registry.ProcessBlock(blk, prevStates, extract.BySubprotocol)
	if err != nil {
		return prev, nil, fmt.Errorf("asm: block rejected: %w", err)
	}

	order := registry.IDs()
	eventRoot, err := eventCommitment(order, result.EventHashes)
	if err != nil {
		return prev, nil, fmt.Errorf("asm: block rejected: %w", err)
	}

	next := AnchorState{
		Chain: ChainViewState{Tip: blk, HeaderState: newHeaderState, EventRoot: eventRoot},
	}.withSections(result.States, order)

	return next, result.EventHashes, nil
}

// eventCommitment builds the Merkle root over every subprotocol's event
// hash, ascending by id, so the ordering is the same regardless of map
// iteration order. A registry with no subprotocols commits to the
// all-zero root.
func eventCommitment(order []uint8, hashes map[uint8][32]byte) ([32]byte, error) {
	if len(order) == 0 {
		return [32]byte{}, nil
	}
	tree, _, err := buildEventTree(order, hashes, 255)
	if err != nil {
		return [32]byte{}, fmt.Errorf("event commitment: %w", err)
	}
	var root [32]byte
	copy(root[:], tree.Root())
	return root, nil
}

// buildEventTree builds the same per-block event tree eventCommitment
// commits to, additionally returning subprotocolID's position in it (or -1
// if subprotocolID never ran this block), so ProveEventInclusion can mint a
// proof without recomputing the tree a different way.
func buildEventTree(order []uint8, hashes map[uint8][32]byte, subprotocolID uint8) (*merkle.Tree, int, error) {
	leaves := make([][]byte, 0, len(order))
	index := -1
	for i, id := range order {
		h := hashes[id]
		leaves = append(leaves, append([]byte(nil), h[:]...))
		if id == subprotocolID {
			index = i
		}
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, -1, err
	}
	return tree, index, nil
}

// ProveEventInclusion mints a portable EventReceipt proving that
// subprotocolID's event hash was committed into this block's event root, so
// an external watcher holding only that root can check "subprotocol X
// emitted this event in block Y" without the full set of event hashes.
// l1Height is the L1 block height the caller is anchoring the receipt to
// (the block hashes was produced from).
func ProveEventInclusion(order []uint8, hashes map[uint8][32]byte, subprotocolID uint8, l1Height uint64) (*merkle.EventReceipt, error) {
	tree, index, err := buildEventTree(order, hashes, subprotocolID)
	if err != nil {
		return nil, fmt.Errorf("asm: event inclusion proof: %w", err)
	}
	if index == -1 {
		return nil, fmt.Errorf("asm: event inclusion proof: subprotocol %d did not run this block", subprotocolID)
	}
	proof, err := tree.GenerateProof(index)
	if err != nil {
		return nil, fmt.Errorf("asm: event inclusion proof: %w", err)
	}
	return merkle.NewEventReceipt(subprotocolID, l1Height, proof)
}

// VerifyEventInclusion checks a receipt produced by ProveEventInclusion (by
// this node or any other) against an event root the caller already trusts,
// typically ChainViewState.EventRoot from an AnchorState it has separately
// verified.
func VerifyEventInclusion(receipt *merkle.EventReceipt, eventRoot [32]byte) error {
	return receipt.Validate(eventRoot)
}

// Genesis builds the AnchorState a chain starts from: every registered
// subprotocol's Init() state, and a ChainViewState anchored at genesisBlock
// with no accumulated work yet.
func Genesis(registry *subprotocol.Registry, genesisBlock slotrng.L1BlockCommitment, startingBits uint32) AnchorState {
	order := registry.IDs()
	byID := make(map[uint8][]byte, len(order))
	for _, id := range order {
		sp, _ := registry.Get(id)
		byID[id] = sp.Init()
	}

	genesis := AnchorState{
		Chain: ChainViewState{
			Tip: genesisBlock,
			HeaderState: HeaderVerificationState{
				Height:          genesisBlock.Height,
				CurrentBits:     startingBits,
				AccumulatedWork: zeroWork(),
				LastVerifiedBlock: genesisBlock,
			},
		},
	}
	return genesis.withSections(byID, order)
}
