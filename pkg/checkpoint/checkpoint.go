// Copyright 2025 Strata Contributors
//
// Package checkpoint implements SignedCheckpoint verification:
// canonical encoding of the checkpoint's public fields, BIP-340 Schnorr
// signature verification over the batch producer key, epoch/L1-range
// continuity checks, and dispatch to a ProofBackend keyed by the rollup's
// configured verifying-key tag.
package checkpoint

import (
	"bytes"
	"fmt"
)

// L1Range is the inclusive Bitcoin block-height range a checkpoint commits
// to.
type L1Range struct {
	StartHeight uint64
	EndHeight   uint64
	StartHash   [32]byte
	EndHash     [32]byte
}

// L2Range is the inclusive rollup slot range a checkpoint commits to.
type L2Range struct {
	StartSlot uint64
	EndSlot   uint64
}

// L2Transition is the state-root transition a checkpoint's proof attests
// to: EndStateRoot is reachable from StartStateRoot by replaying every slot
// in the committed L2Range.
type L2Transition struct {
	StartStateRoot [32]byte
	EndStateRoot   [32]byte
}

// Checkpoint is the public, signed content of a checkpoint.
// Every field here participates in the canonical encoding that both the
// Schnorr signature and the ZK proof's public values commit to.
type Checkpoint struct {
	Epoch        uint64
	L1Range      L1Range
	L2Range      L2Range
	L2Transition L2Transition
	// AccPow is the chain's accumulated proof-of-work at L1Range.EndHeight,
	// big-endian u128, mirroring asm.HeaderVerificationState.AccumulatedWork
	// at the moment this checkpoint's L1 range closes.
	AccPow [16]byte
}

// ProofReceipt is the proof artifact accompanying a Checkpoint. Empty signals the devnet timeout escape hatch
// (rollupcfg.ProofPublishMode not Strict): no proof bytes are present and
// the receipt is accepted only if the configured ProofPublishMode permits
// it.
type ProofReceipt struct {
	PublicValues []byte
	ProofBytes   []byte
	Empty        bool
}

// SignedCheckpoint is the envelope extracted from an L1 witness
// (l1chain.ExtractCheckpointEnvelope returns only the raw envelope bytes;
// DecodeSignedCheckpoint in encode.go decodes them into this type).
type SignedCheckpoint struct {
	Checkpoint Checkpoint
	Receipt    ProofReceipt
	Signature  [64]byte
	SignerKey  [32]byte // x-only BIP-340 pubkey
}

// checkContinuity enforces the epoch-progression and range-continuity
// invariants against the previously verified checkpoint. prev is nil for
// the first checkpoint a chain ever verifies, in which case next's L1 range
// must start exactly at genesisL1Height, the rollup's configured L1
// anchor height: otherwise a forged first checkpoint could claim any L1
// starting height and verify cleanly.
func checkContinuity(prev *Checkpoint, next *Checkpoint, genesisL1Height uint64) error {
	if prev == nil {
		if next.Epoch != 0 {
			return fmt.Errorf("checkpoint: first checkpoint must be epoch 0, got %d", next.Epoch)
		}
		if next.L1Range.StartHeight != genesisL1Height {
			return fmt.Errorf("checkpoint: first checkpoint l1 range start %d does not match genesis l1 height %d",
				next.L1Range.StartHeight, genesisL1Height)
		}
		return nil
	}

	if next.Epoch != prev.Epoch+1 {
		return fmt.Errorf("checkpoint: epoch %d does not follow %d", next.Epoch, prev.Epoch)
	}
	if next.L1Range.StartHeight != prev.L1Range.EndHeight+1 {
		return fmt.Errorf("checkpoint: l1 range start %d does not follow previous end %d",
			next.L1Range.StartHeight, prev.L1Range.EndHeight)
	}
	if next.L1Range.EndHeight < next.L1Range.StartHeight {
		return fmt.Errorf("checkpoint: l1 range end %d precedes start %d",
			next.L1Range.EndHeight, next.L1Range.StartHeight)
	}
	if next.L2Range.StartSlot != prev.L2Range.EndSlot+1 {
		return fmt.Errorf("checkpoint: l2 range start %d does not follow previous end %d",
			next.L2Range.StartSlot, prev.L2Range.EndSlot)
	}
	if next.L2Range.EndSlot < next.L2Range.StartSlot {
		return fmt.Errorf("checkpoint: l2 range end %d precedes start %d",
			next.L2Range.EndSlot, next.L2Range.StartSlot)
	}
	if next.L2Transition.StartStateRoot != prev.L2Transition.EndStateRoot {
		return fmt.Errorf("checkpoint: l2 start state root does not chain from previous end state root")
	}
	if bytes.Compare(next.AccPow[:], prev.AccPow[:]) <= 0 {
		return fmt.Errorf("checkpoint: accumulated work did not increase over previous checkpoint")
	}
	return nil
}
