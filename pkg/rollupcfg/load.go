package rollupcfg

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// rollupParamsJSON is the wire shape for RollupParams JSON files.
// Binary fields are hex-encoded; this is the only place RollupParams
// touches an encoding format, keeping the struct itself encoding-agnostic.
type rollupParamsJSON struct {
	RollupName              string        `json:"rollup_name"`
	BlockTimeMs             uint64        `json:"block_time_ms"`
	CredRule                string        `json:"cred_rule"`
	HorizonL1Height         uint64        `json:"horizon_l1_height"`
	GenesisL1Height         uint64        `json:"genesis_l1_height"`
	OperatorConfig          []operatorKeyJSON `json:"operator_config"`
	EvmGenesisHash          string        `json:"evm_genesis_hash"`
	EvmGenesisStateRoot     string        `json:"evm_genesis_state_root"`
	L1ReorgSafeDepth        uint64        `json:"l1_reorg_safe_depth"`
	DepositAmountSats       uint64        `json:"deposit_amount"`
	AddressLength           uint8         `json:"address_length"`
	RollupVKTag             string        `json:"rollup_vk_tag"`
	RollupVKSP1             string        `json:"rollup_vk_sp1,omitempty"`
	RollupVKRisc0           string        `json:"rollup_vk_risc0,omitempty"`
	RollupVKNative          uint8         `json:"rollup_vk_native,omitempty"`
	DispatchAssignmentDurMs uint64        `json:"dispatch_assignment_dur_ms"`
	ProofPublishStrict      bool          `json:"proof_publish_strict"`
	ProofPublishTimeoutSecs uint64        `json:"proof_publish_timeout_secs"`
	MaxDepositsInBlock      uint32        `json:"max_deposits_in_block"`
	CoreSubprotocolID       uint8         `json:"core_subprotocol_id"`
	BridgeSubprotocolID     uint8         `json:"bridge_subprotocol_id"`
	BatchProducerPubkey     string        `json:"batch_producer_pubkey"`
	Administrator           string        `json:"administrator"`
	ConsensusManager        string        `json:"consensus_manager"`
	BridgeTaprootAddress    string        `json:"bridge_taproot_address"`
}

type operatorKeyJSON struct {
	ID        uint32 `json:"id"`
	SchnorrPK string `json:"schnorr_pk"`
}

// LoadRollupParams reads RollupParams from a JSON file and validates them.
// Per (deprecated fallback params), this call refuses to return
// params with zeroed operator authority keys.
func LoadRollupParams(path string) (*RollupParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rollupcfg: read %s: %w", path, err)
	}
	return ParseRollupParams(data)
}

// ParseRollupParams parses and validates RollupParams JSON bytes.
func ParseRollupParams(data []byte) (*RollupParams, error) {
	var wire rollupParamsJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("rollupcfg: parse params json: %w", err)
	}

	p := &RollupParams{
		RollupName:              wire.RollupName,
		BlockTimeMs:             wire.BlockTimeMs,
		CredRule:                CredRule(wire.CredRule),
		HorizonL1Height:         wire.HorizonL1Height,
		GenesisL1Height:         wire.GenesisL1Height,
		L1ReorgSafeDepth:        wire.L1ReorgSafeDepth,
		DepositAmountSats:       wire.DepositAmountSats,
		AddressLength:           wire.AddressLength,
		DispatchAssignmentDurMs: wire.DispatchAssignmentDurMs,
		MaxDepositsInBlock:      wire.MaxDepositsInBlock,
		CoreSubprotocolID:       wire.CoreSubprotocolID,
		BridgeSubprotocolID:     wire.BridgeSubprotocolID,
		BridgeTaprootAddress:    wire.BridgeTaprootAddress,
	}

	if wire.ProofPublishStrict {
		p.ProofPublishMode = Strict()
	} else {
		p.ProofPublishMode = Timeout(wire.ProofPublishTimeoutSecs)
	}

	var err error
	if p.EvmGenesisHash, err = hex32(wire.EvmGenesisHash); err != nil {
		return nil, fmt.Errorf("rollupcfg: evm_genesis_hash: %w", err)
	}
	if p.EvmGenesisStateRoot, err = hex32(wire.EvmGenesisStateRoot); err != nil {
		return nil, fmt.Errorf("rollupcfg: evm_genesis_state_root: %w", err)
	}
	if p.BatchProducerPubkey, err = hex32(wire.BatchProducerPubkey); err != nil {
		return nil, fmt.Errorf("rollupcfg: batch_producer_pubkey: %w", err)
	}
	if p.Administrator, err = hex32(wire.Administrator); err != nil {
		return nil, fmt.Errorf("rollupcfg: administrator: %w", err)
	}
	if p.ConsensusManager, err = hex32(wire.ConsensusManager); err != nil {
		return nil, fmt.Errorf("rollupcfg: consensus_manager: %w", err)
	}

	p.RollupVK.Tag = RollupVKTag(wire.RollupVKTag)
	switch p.RollupVK.Tag {
	case VKTagSP1:
		if p.RollupVK.SP1, err = hex32(wire.RollupVKSP1); err != nil {
			return nil, fmt.Errorf("rollupcfg: rollup_vk_sp1: %w", err)
		}
	case VKTagRisc0:
		if p.RollupVK.Risc0, err = hex32(wire.RollupVKRisc0); err != nil {
			return nil, fmt.Errorf("rollupcfg: rollup_vk_risc0: %w", err)
		}
	case VKTagNative:
		p.RollupVK.NativeID = wire.RollupVKNative
	}

	for _, op := range wire.OperatorConfig {
		pk, err := hex32(op.SchnorrPK)
		if err != nil {
			return nil, fmt.Errorf("rollupcfg: operator %d schnorr_pk: %w", op.ID, err)
		}
		p.OperatorConfig = append(p.OperatorConfig, OperatorKey{ID: op.ID, SchnorrPK: pk})
	}

	if err := p.CheckWellFormed(); err != nil {
		return nil, err
	}

	return p, nil
}

func hex32(s string) ([32]byte, error) {
	var out [32]byte
	if s == "" {
		return out, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
