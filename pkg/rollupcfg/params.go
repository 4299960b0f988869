// Copyright 2025 Strata Contributors
//
// Package rollupcfg defines RollupParams, the immutable process-wide
// rollup parameters, and their well-formedness checks. RollupParams is
// deserialized once at process start (JSON) and never mutated; every ASM
// entry point receives it by value or via an injected, read-only Context
// rather than through a package-level singleton.
package rollupcfg

import "fmt"

// CredRule selects how operator authority is checked.
type CredRule string

const (
	CredUnchecked  CredRule = "unchecked"
	CredSchnorrKey CredRule = "schnorr_key"
)

// RollupVKTag names the backend family a checkpoint verifying key belongs
// to. The ASM never interprets the key bytes themselves; only the tag
// selects which ProofBackend validates a receipt.
type RollupVKTag string

const (
	VKTagSP1    RollupVKTag = "sp1"
	VKTagRisc0  RollupVKTag = "risc0"
	VKTagNative RollupVKTag = "native"
)

// RollupVerifyingKey is the tagged verifying-key variant the Core
// subprotocol checks checkpoint proof receipts against.
type RollupVerifyingKey struct {
	Tag      RollupVKTag
	SP1      [32]byte
	Risc0    [32]byte
	NativeID uint8
}

// ProofPublishMode controls whether an empty checkpoint proof is accepted
// unconditionally (devnet escape hatch) or must always verify.
type ProofPublishMode struct {
	Strict      bool
	TimeoutSecs uint64 // meaningful only when !Strict
}

func Strict() ProofPublishMode { return ProofPublishMode{Strict: true} }

func Timeout(secs uint64) ProofPublishMode {
	return ProofPublishMode{Strict: false, TimeoutSecs: secs}
}

// OperatorKey is a single static operator's public key material.
type OperatorKey struct {
	ID        uint32
	SchnorrPK [32]byte
}

// RollupParams holds the immutable, process-wide rollup parameters. Every
// field here is fixed at genesis; there is no on-chain governance over this
// struct within the scope of this repository.
type RollupParams struct {
	RollupName         string
	BlockTimeMs         uint64
	CredRule            CredRule
	HorizonL1Height     uint64
	GenesisL1Height     uint64
	OperatorConfig      []OperatorKey
	EvmGenesisHash      [32]byte
	EvmGenesisStateRoot [32]byte
	L1ReorgSafeDepth    uint64
	DepositAmountSats   uint64
	AddressLength       uint8
	RollupVK            RollupVerifyingKey
	DispatchAssignmentDurMs uint64
	ProofPublishMode    ProofPublishMode
	MaxDepositsInBlock  uint32

	// CoreSubprotocolID and BridgeSubprotocolID name the ids of the two
	// first-class subprotocols wired in this repository (see
	// pkg/subprotocol). Unknown ids encountered in persisted state are
	// retained opaquely; these two are the ones the registry actively
	// drives.
	CoreSubprotocolID   uint8
	BridgeSubprotocolID uint8

	// BatchProducerPubkey, Administrator, ConsensusManager are the Core
	// subprotocol's initial authority keys (see pkg/checkpoint).
	BatchProducerPubkey [32]byte
	Administrator       [32]byte
	ConsensusManager    [32]byte

	// BridgeTaprootAddress is the current bridge deposit address used by
	// the tx filter. It is part of genesis params; later
	// rotations are tracked in the Bridge subprotocol's own state, not
	// here (this field is only the genesis value).
	BridgeTaprootAddress string
}

// sps50MagicLen is the length in bytes of the "ALPN" magic prefix used by
// the SPS-50 tagging scheme: 4 bytes of magic.
const sps50MagicLen = 4

// maxOpReturnPush is Bitcoin's per-push-data size limit inside a standard
// OP_RETURN output body (80 bytes total output script by default policy,
// of which the push header consumes a few bytes); bounds
// AddressLength against it.
const maxOpReturnPush = 80

// CheckWellFormed validates the invariants a RollupParams value must
// satisfy before it is used to derive genesis state.
func (p *RollupParams) CheckWellFormed() error {
	seen := make(map[uint32]struct{}, len(p.OperatorConfig))
	for _, op := range p.OperatorConfig {
		if _, dup := seen[op.ID]; dup {
			return fmt.Errorf("rollupcfg: duplicate operator id %d", op.ID)
		}
		seen[op.ID] = struct{}{}
	}

	if p.HorizonL1Height > p.GenesisL1Height {
		return fmt.Errorf("rollupcfg: horizon_l1_height %d must be <= genesis_l1_height %d",
			p.HorizonL1Height, p.GenesisL1Height)
	}

	if p.DepositAmountSats == 0 {
		return fmt.Errorf("rollupcfg: deposit_amount must be > 0")
	}

	if int(p.AddressLength) > maxOpReturnPush-sps50MagicLen {
		return fmt.Errorf("rollupcfg: address_length %d exceeds %d - magic_len",
			p.AddressLength, maxOpReturnPush)
	}

	switch p.RollupVK.Tag {
	case VKTagSP1, VKTagRisc0, VKTagNative:
	default:
		return fmt.Errorf("rollupcfg: unrecognized rollup_vk tag %q", p.RollupVK.Tag)
	}

	if p.CoreSubprotocolID == p.BridgeSubprotocolID {
		return fmt.Errorf("rollupcfg: core and bridge subprotocol ids must differ")
	}

	if isZero32(p.BatchProducerPubkey) || isZero32(p.Administrator) {
		return fmt.Errorf("rollupcfg: refusing zeroed operator keys (deprecated fallback params)")
	}

	return nil
}

func isZero32(b [32]byte) bool {
	var zero [32]byte
	return b == zero
}
