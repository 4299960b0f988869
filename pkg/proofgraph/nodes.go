// Copyright 2025 Strata Contributors

package proofgraph

import (
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/strata-rollup/strata-asm/pkg/asm"
	"github.com/strata-rollup/strata-asm/pkg/l1chain"
	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
)

// ProofReceipt is the opaque output of proving one node of the DAG: a
// verifying key tag, the public values committed to, and the proof bytes
// themselves. Hosts produce these; this package never inspects Proof's
// contents.
type ProofReceipt struct {
	Key          ProofKey
	VK           []byte
	PublicValues []byte
	Proof        []byte
}

// ReceiptRef is how a node that depends on another node's receipt
// references it: both the receipt and the verifying key it was produced
// against travel together, so the inner circuit can assume its
// verification rather than re-deriving the key from context.
type ReceiptRef struct {
	Receipt ProofReceipt
	VK      []byte
}

// BtcBlockspaceInput is the input to a BtcBlockspace(bstart,bend) node: the
// ordered Bitcoin blocks in range and the filter configuration in effect
// for the epoch they belong to.
type BtcBlockspaceInput struct {
	Blocks       []*BlockRef
	FilterConfig l1chain.FilterConfig
}

// BlockRef is a lightweight reference to a block by height and id, used
// wherever a proof input needs to name a block without carrying its full
// wire representation inline.
type BlockRef struct {
	Height uint64
	BlkID  [32]byte
}

// BtcBlockspaceOutput is what a BtcBlockspace proof commits to: the block
// range it covers and the DA commitments extracted from it, consumed by
// L1Batch.
type BtcBlockspaceOutput struct {
	Start, End    uint64
	DaCommitments [][32]byte
}

// EvmBlock is one EVM execution-environment block's proof-relevant
// content: its pre-state root, header, and ordered transactions.
type EvmBlock struct {
	PreStateRoot [32]byte
	Header       *types.Header
	Txs          types.Transactions
}

// EvmEeStfInput is the input to an EvmEeStf(estart,eend) node.
type EvmEeStfInput struct {
	Blocks []EvmBlock
}

// EvmEeStfOutput is what an EvmEeStf proof commits to.
type EvmEeStfOutput struct {
	InitialStateRoot [32]byte
	FinalStateRoot   [32]byte
}

// L2BlockRef names a rollup block's proof-relevant payload by commitment;
// the block bundle itself is fetched by the caller building the input, not
// carried through the DAG.
type L2BlockRef struct {
	Commitment slotrng.L2BlockCommitment
}

// ClStfInput is the input to a ClStf(lstart,lend) node.
type ClStfInput struct {
	RollupParams          *rollupcfg.RollupParams
	InitialChainstateRoot [32]byte
	L2Blocks              []L2BlockRef
	EvmEeReceipt          ReceiptRef
	BtcBlockspaceReceipt  *ReceiptRef // optional: only present when this epoch's L2 blocks reference L1 deposits
}

// ClStfOutput is what a ClStf proof commits to.
type ClStfOutput struct {
	InitialChainstateRoot [32]byte
	FinalChainstateRoot   [32]byte
	TxFilterTransition    []byte // nil when this range made no filter-config change
}

// L1BatchInput is the input to an L1Batch(bstart,bend) node.
type L1BatchInput struct {
	HeaderStateAtStart asm.HeaderVerificationState
	Outputs            []BtcBlockspaceOutput
	RollupParams       *rollupcfg.RollupParams
}

// L1BatchOutput is what an L1Batch proof commits to: the advanced header
// verification state after folding in every block in the range.
type L1BatchOutput struct {
	UpdatedHeaderState asm.HeaderVerificationState
}

// ClAggInput is the input to a ClAgg(lstart,lend) node: an ordered batch of
// ClStf receipts and the verifying key they were all produced against.
type ClAggInput struct {
	Batch   []ClStfOutput
	ClStfVK []byte
}

// ClAggOutput is a single receipt equivalent to running every ClStf in
// Batch in sequence.
type ClAggOutput struct {
	InitialChainstateRoot [32]byte
	FinalChainstateRoot   [32]byte
}

// CheckpointProofOutput is the public output of a Checkpoint(epoch) proof:
// CheckpointProofOutput = (epoch_commitment, l1_range, l2_range,
// final_state_root, acc_pow).
type CheckpointProofOutput struct {
	EpochCommitment slotrng.EpochCommitment
	L1RangeStart    uint64
	L1RangeEnd      uint64
	L2RangeStart    uint64
	L2RangeEnd      uint64
	FinalStateRoot  [32]byte
	AccPow          [16]byte
}

// CheckpointInput is the input to a Checkpoint(epoch) node.
type CheckpointInput struct {
	L1BatchReceipt      ReceiptRef
	L2BatchReceipt      ReceiptRef
	PrevPublicOutput    *CheckpointProofOutput // nil iff epoch is the first epoch
	GenesisPublicOutput CheckpointProofOutput
}
