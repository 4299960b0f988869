// Copyright 2025 Strata Contributors
//
// Package asm implements the Anchor State Machine: the pure
// state-transition function that folds one Bitcoin block into the
// rollup's AnchorState, plus the PoW continuity checks that guard it.
package asm

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/strata-rollup/strata-asm/pkg/slotrng"
)

var nullBlockCommitment slotrng.L1BlockCommitment

// medianTimeSpan is the number of trailing block timestamps used to
// compute median-time-past, matching Bitcoin's own rule.
const medianTimeSpan = 11

// retargetInterval is the number of blocks between difficulty
// recalculations (Bitcoin mainnet: every 2016 blocks, ~2 weeks at the
// 10-minute target spacing).
const retargetInterval = 2016

// targetTimespan is the expected number of seconds retargetInterval
// blocks should take.
const targetTimespan = retargetInterval * 10 * 60

// powLimitBits is the minimum difficulty (maximum target), encoded as
// Bitcoin's compact "bits" representation. This mirrors mainnet's
// genesis difficulty; a devnet using a different limit configures its
// own RollupParams-derived value instead (not modeled here, this field
// is fixed for simplicity, matching the pure-function, no-external-config
// shape this package is built around).
const powLimitBits = 0x1d00ffff

// HeaderVerificationState is all data needed to validate the next Bitcoin
// header against the current chain tip: median-time-past inputs,
// accumulated proof-of-work, the current difficulty target, and the last
// verified block.
type HeaderVerificationState struct {
	Height             uint64
	LastTimestamps     []uint32 // ring buffer, oldest first, capped at medianTimeSpan
	CurrentBits        uint32
	AccumulatedWork    *big.Int
	LastVerifiedBlock  slotrng.L1BlockCommitment
	RetargetStartTime  uint32 // timestamp of the first block in the current retarget window
}

// Clone returns a deep copy, since CheckAndUpdateContinuity never mutates
// its receiver in place, callers always receive a new value, matching
// the ASM's "never mutated in place" discipline at every level.
func (h HeaderVerificationState) Clone() HeaderVerificationState {
	out := h
	out.LastTimestamps = append([]uint32(nil), h.LastTimestamps...)
	out.AccumulatedWork = new(big.Int).Set(h.AccumulatedWork)
	return out
}

func (h HeaderVerificationState) medianTimePast() uint32 {
	ts := append([]uint32(nil), h.LastTimestamps...)
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	return ts[len(ts)/2]
}

// bitsToTarget expands Bitcoin's compact difficulty encoding into a full
// target value.
func bitsToTarget(bits uint32) *big.Int {
	exponent := bits >> 24
	mantissa := bits & 0x007fffff
	target := new(big.Int).SetUint64(uint64(mantissa))
	if exponent <= 3 {
		target.Rsh(target, uint(8*(3-exponent)))
	} else {
		target.Lsh(target, uint(8*(exponent-3)))
	}
	return target
}

// targetToBits compresses a full target back into compact form.
func targetToBits(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}
	b := target.Bytes()
	exponent := len(b)
	var mantissa uint32
	if exponent <= 3 {
		for _, by := range b {
			mantissa = mantissa<<8 | uint32(by)
		}
		mantissa <<= uint(8 * (3 - exponent))
	} else {
		mantissa = uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}
	// The high bit of the mantissa is a sign bit in Bitcoin's encoding; if
	// set, shift one byte further to keep the value positive.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return uint32(exponent)<<24 | mantissa
}

// blockWork returns the proof-of-work contributed by a block with the
// given compact target: 2^256 / (target + 1).
func blockWork(bits uint32) *big.Int {
	target := bitsToTarget(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	denom := new(big.Int).Add(target, big.NewInt(1))
	return numerator.Div(numerator, denom)
}

// ErrHeaderContinuity is the sentinel error kind for any header failing
// continuity checks; the caller rejects the whole block on this error.
type ErrHeaderContinuity struct {
	Reason string
}

func (e *ErrHeaderContinuity) Error() string {
	return fmt.Sprintf("asm: header continuity: %s", e.Reason)
}

// CheckAndUpdateContinuity validates header against h (the state after the
// previous accepted block) and, on success, returns the advanced state.
// It is the only function permitted to mutate the PoW view, and it is
// pure: the same (h, header) pair always produces the same result.
func CheckAndUpdateContinuity(h HeaderVerificationState, header *wire.BlockHeader, blkID [32]byte) (HeaderVerificationState, error) {
	if !h.LastVerifiedBlock.Equal(nullBlockCommitment) && header.PrevBlock != chainhash.Hash(h.LastVerifiedBlock.BlkID) {
		return h, &ErrHeaderContinuity{Reason: "header does not extend the current tip"}
	}

	if len(h.LastTimestamps) >= medianTimeSpan {
		mtp := h.medianTimePast()
		if uint32(header.Timestamp.Unix()) <= mtp {
			return h, &ErrHeaderContinuity{Reason: "timestamp does not exceed median-time-past"}
		}
	}

	next := h.Clone()
	next.Height++

	expectedBits := h.CurrentBits
	if next.Height%retargetInterval == 0 && h.RetargetStartTime != 0 {
		actualTimespan := int64(header.Timestamp.Unix()) - int64(h.RetargetStartTime)
		actualTimespan = clampTimespan(actualTimespan)

		oldTarget := bitsToTarget(h.CurrentBits)
		newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
		newTarget.Div(newTarget, big.NewInt(targetTimespan))

		powLimit := bitsToTarget(powLimitBits)
		if newTarget.Cmp(powLimit) > 0 {
			newTarget = powLimit
		}
		expectedBits = targetToBits(newTarget)
		next.RetargetStartTime = uint32(header.Timestamp.Unix())
	} else if h.RetargetStartTime == 0 {
		next.RetargetStartTime = uint32(header.Timestamp.Unix())
	}

	if header.Bits != expectedBits {
		return h, &ErrHeaderContinuity{Reason: "difficulty bits do not match the expected retarget"}
	}

	next.CurrentBits = header.Bits
	next.AccumulatedWork.Add(next.AccumulatedWork, blockWork(header.Bits))
	next.LastVerifiedBlock = slotrng.L1BlockCommitment{Height: next.Height, BlkID: blkID}

	next.LastTimestamps = append(next.LastTimestamps, uint32(header.Timestamp.Unix()))
	if len(next.LastTimestamps) > medianTimeSpan {
		next.LastTimestamps = next.LastTimestamps[len(next.LastTimestamps)-medianTimeSpan:]
	}

	return next, nil
}

func clampTimespan(actual int64) int64 {
	min := int64(targetTimespan / 4)
	max := int64(targetTimespan * 4)
	if actual < min {
		return min
	}
	if actual > max {
		return max
	}
	return actual
}

func zeroWork() *big.Int { return big.NewInt(0) }
