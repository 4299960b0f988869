// Copyright 2025 Strata Contributors
//
// Package l1chain implements the L1 transaction filter and indexer:
// scanning a Bitcoin block for SPS-50 tagged transactions, routing them to
// subprotocol visitors, and extracting the well-known ProtocolOperation
// variants (Deposit, Checkpoint envelope, DA commitment). It is built
// directly on btcd's wire/txscript/chainhash packages rather than a
// hand-rolled decoder.
package l1chain

import "github.com/btcsuite/btcd/wire"

// OpKind tags the ProtocolOperation variant.
type OpKind uint8

const (
	OpDeposit OpKind = iota
	OpDepositRequest
	OpDepositSpent
	OpWithdrawalFulfillment
	OpCheckpoint
	OpDaCommitment
	OpAdminRotateBridgeAddress
)

// ProtocolOperation is the tagged variant extracted from a tx.
// Only the fields relevant to Kind are populated; this mirrors a Rust enum
// via an explicit discriminant plus per-kind payload fields, chosen for a
// finite, compile-time-known set of variants rather than an interface with
// dynamic dispatch.
type ProtocolOperation struct {
	Kind OpKind

	// OpDeposit / OpDepositRequest
	AmountSats uint64
	Outpoint   wire.OutPoint
	EEAddress  []byte

	// OpDepositSpent
	SpentOutpoint wire.OutPoint

	// OpWithdrawalFulfillment
	WithdrawalOutpoint wire.OutPoint
	FulfilledAmount    uint64

	// OpCheckpoint
	SignedCheckpointBytes []byte

	// OpDaCommitment
	DaHash [32]byte

	// OpAdminRotateBridgeAddress: the raw witness-envelope payload, decoded
	// and Schnorr-verified by the Core subprotocol against its
	// Administrator key, never by this package.
	AdminRotationBytes []byte
}
